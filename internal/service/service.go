package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stemstr/arweave-upload/internal/backend"
	"github.com/stemstr/arweave-upload/internal/chain"
	"github.com/stemstr/arweave-upload/internal/quote"
	"github.com/stemstr/arweave-upload/internal/storage/spool"
)

const (
	MaxFiles      = 64
	MaxFileLength = int64(1) << 40
	HistoryLimit  = 25

	DefaultVerifyTimeout = 10 * time.Second
)

// DefaultMinGasFee is the fee floor in wei, 30 gwei.
var DefaultMinGasFee = big.NewInt(30_000_000_000)

type Config struct {
	// MinGasFee is the floor applied to both the priority fee and the max
	// fee of settlement transactions.
	MinGasFee *big.Int
	// StrictGasCheck rejects settlements the server wallet cannot pay gas
	// for.
	StrictGasCheck bool
	// VerifyTimeout bounds post upload receipt verification. Zero disables
	// verification.
	VerifyTimeout time.Duration
	// SpoolDir holds downloads whose length the source did not report.
	// Empty means the system temp directory.
	SpoolDir string
}

type Service struct {
	cfg      Config
	repo     quoteRepo
	auth     authenticator
	tokens   tokenList
	backends connector
	fetcher  objectFetcher
	notifier notifier
	spool    *spool.Spool
	log      *zap.SugaredLogger

	wg sync.WaitGroup
}

func New(cfg Config, repo quoteRepo, auth authenticator, tokens tokenList, backends connector, fetcher objectFetcher, notifier notifier, log *zap.SugaredLogger) (*Service, error) {
	if repo == nil || auth == nil || tokens == nil || backends == nil || fetcher == nil {
		return nil, errors.New("service: missing dependency")
	}
	if cfg.MinGasFee == nil {
		cfg.MinGasFee = DefaultMinGasFee
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	sp, err := spool.New(cfg.SpoolDir)
	if err != nil {
		return nil, fmt.Errorf("spool.New: %w", err)
	}

	return &Service{
		cfg:      cfg,
		repo:     repo,
		auth:     auth,
		tokens:   tokens,
		backends: backends,
		fetcher:  fetcher,
		notifier: notifier,
		spool:    sp,
		log:      log,
	}, nil
}

// Wait blocks until every background settlement has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// transition moves a quote along an edge of the status graph.
func (s *Service) transition(ctx context.Context, id string, from, to quote.Status) error {
	if !quote.CanTransition(from, to) {
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	if err := s.repo.UpdateStatus(ctx, id, from, to); err != nil {
		return fmt.Errorf("repo.UpdateStatus: %w", err)
	}
	return nil
}

// feeData returns current network fees clamped to the configured floor, or
// the floor itself if fees cannot be read.
func (s *Service) feeData(ctx context.Context, log *zap.SugaredLogger, c backend.ChainClient) chain.Fees {
	fees, err := c.FeeData(ctx)
	if err != nil {
		log.Warnw("fee data unavailable, using floor", "floor", s.cfg.MinGasFee, "error", err)
		return chain.FloorFees(s.cfg.MinGasFee)
	}
	return fees.Clamp(s.cfg.MinGasFee)
}

func (s *Service) notify(ctx context.Context, log *zap.SugaredLogger, content string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, content); err != nil {
		log.Errorw("operator notification failed", "error", err)
	}
}
