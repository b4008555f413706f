package verify

import (
	"context"
	"errors"
	"testing"
)

func TestVerifyAllAllSucceed(t *testing.T) {
	p := NewPool(4, func(ctx context.Context, job TxJob) (bool, error) {
		return true, nil
	}, nil)
	ok, err := p.VerifyAll(context.Background(), []TxJob{{}, {}, {}})
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if !ok {
		t.Fatal("expected all jobs to pass")
	}
}

func TestVerifyAllOneFails(t *testing.T) {
	p := NewPool(2, func(ctx context.Context, job TxJob) (bool, error) {
		return job.Flags != 0, nil
	}, nil)
	ok, err := p.VerifyAll(context.Background(), []TxJob{{Flags: 1}, {Flags: 0}, {Flags: 1}})
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if ok {
		t.Fatal("expected overall failure when one job fails")
	}
}

func TestVerifyAllPropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	p := NewPool(2, func(ctx context.Context, job TxJob) (bool, error) {
		return false, wantErr
	}, nil)
	_, err := p.VerifyAll(context.Background(), []TxJob{{}})
	if err == nil {
		t.Fatal("expected propagated error")
	}
}

func TestVerifyAllEmpty(t *testing.T) {
	p := NewPool(2, nil, nil)
	ok, err := p.VerifyAll(context.Background(), nil)
	if err != nil || !ok {
		t.Fatalf("expected vacuous true for empty jobs, got ok=%v err=%v", ok, err)
	}
}

func TestVerifySignatureMissingChecker(t *testing.T) {
	p := NewPool(1, nil, nil)
	if _, err := p.VerifySignature(context.Background(), nil, nil, nil); err == nil {
		t.Fatal("expected error with no signature checker configured")
	}
}
