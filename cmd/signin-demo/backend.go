package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"sync"

	goSignIn "github.com/MrEthical07/goSignIn"
	"go.uber.org/zap"
)

// demoBackend stands in for an SMS/email provider. Codes are generated
// locally and written to the log instead of being delivered.
type demoBackend struct {
	logger *zap.Logger

	mu    sync.Mutex
	codes map[string]string
}

func newDemoBackend(logger *zap.Logger) *demoBackend {
	return &demoBackend{logger: logger, codes: make(map[string]string)}
}

func (b *demoBackend) SendCode(_ context.Context, ref goSignIn.Identity) error {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return err
	}
	code := fmt.Sprintf("%06d", n.Int64())

	b.mu.Lock()
	b.codes[ref.Key()] = code
	b.mu.Unlock()

	b.logger.Debug("code delivered",
		zap.String("identity", ref.Masked()),
		zap.String("channel", ref.Channel.String()),
		zap.String("code", code),
	)
	return nil
}

func (b *demoBackend) VerifyCode(_ context.Context, ref goSignIn.Identity, code string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	want, ok := b.codes[ref.Key()]
	if !ok {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(code)) != 1 {
		return false, nil
	}
	delete(b.codes, ref.Key())
	return true, nil
}

// peek returns the last code sent to ref, for the load generator.
func (b *demoBackend) peek(ref goSignIn.Identity) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[ref.Key()]
}
