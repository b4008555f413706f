package main

import (
	"encoding/json"
	"net/http"
	"time"

	"ledgerd.dev/chain/chain"
	"ledgerd.dev/chain/chainlog"
)

const shutdownGrace = 5 * time.Second

type tipResponse struct {
	Network   string `json:"network"`
	Height    uint32 `json:"height"`
	Hash      string `json:"hash"`
	Chainwork string `json:"chainwork"`
}

// newLivenessServer builds the process's only external surface: a
// read-only liveness/tip endpoint. Anything richer (RPC, P2P) is out of
// this module's scope (spec.md §6's black-box boundary stops at Chain/
// ChainDB), so this exists only to prove the wiring works end to end.
func newLivenessServer(addr, network string, c *chain.Chain, logger *chainlog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/tip", func(w http.ResponseWriter, r *http.Request) {
		tip := c.Tip()
		resp := tipResponse{
			Network: network,
			Height:  tip.Height,
			Hash:    tip.Hash.String(),
		}
		if tip.Chainwork != nil {
			resp.Chainwork = tip.Chainwork.String()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warnf("tip encode failed: %v", err)
		}
	})
	return &http.Server{Addr: addr, Handler: mux}
}
