// Package sloghooks logs cache hook events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/modelcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	DanglingEvery uint64
	// Misses and hits are not logged unless LogLookups is set.
	LogLookups bool
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	danglingCtr atomic.Uint64
}

var _ modelcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Lookup(typ string, st modelcache.Status) {
	if h.l == nil || !h.opts.LogLookups {
		return
	}
	h.l.Debug("modelcache.lookup",
		"type", typ,
		"status", st.String())
}

func (h *Hooks) DanglingReference(refKey, targetKey string) {
	if h.l == nil || !sample(h.opts.DanglingEvery, &h.danglingCtr) {
		return
	}
	h.l.Info("modelcache.dangling_reference",
		"ref", h.redact(refKey),
		"target", h.redact(targetKey))
}

func (h *Hooks) SetResolutionFailed(setKey, memberKey string) {
	if h.l == nil {
		return
	}
	h.l.Info("modelcache.set_resolution_failed",
		"set", h.redact(setKey),
		"member", h.redact(memberKey))
}

func (h *Hooks) CorruptEntry(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Warn("modelcache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string, many bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("modelcache.provider_set_rejected",
		"key", h.redact(storageKey),
		"many", many)
}

func (h *Hooks) Tombstoned(storageKey string, delay time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Debug("modelcache.tombstoned",
		"key", h.redact(storageKey),
		"delay", delay)
}
