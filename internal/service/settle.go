package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/stemstr/arweave-upload/internal/auth"
	"github.com/stemstr/arweave-upload/internal/backend"
	"github.com/stemstr/arweave-upload/internal/db"
	"github.com/stemstr/arweave-upload/internal/quote"
	"github.com/stemstr/arweave-upload/internal/tokens"
)

type UploadRequest struct {
	QuoteID   string
	Files     []string
	Nonce     string
	Signature string
}

func (r UploadRequest) validate(f objectFetcher) error {
	if r.QuoteID == "" {
		return validationError("Error, quoteId required.")
	}
	if !quote.ValidID(r.QuoteID) {
		return validationError("Invalid quoteId format.")
	}
	if len(r.Files) == 0 {
		return validationError("Empty files field.")
	}
	if len(r.Files) > MaxFiles {
		return validationError(fmt.Sprintf("Too many files. Max %d.", MaxFiles))
	}
	for i, ref := range r.Files {
		if err := f.Validate(ref); err != nil {
			return newError(KindValidation, fmt.Sprintf("Invalid file reference on index %d.", i), err)
		}
	}
	return validateAuthFields(r.Nonce, r.Signature)
}

// settlement is the state carried from the synchronous checks into the
// background run.
type settlement struct {
	quote   *quote.Quote
	files   []string
	price   *big.Int
	token   tokens.Token
	backend *backend.Backend
}

// Settle checks that a quote can be paid for and uploaded, moves it to
// PAYMENT_START and returns. Payment and upload continue in the background;
// their outcome is visible through GetStatus.
func (s *Service) Settle(ctx context.Context, req UploadRequest) error {
	if err := req.validate(s.fetcher); err != nil {
		return err
	}

	q, err := s.lookupQuote(ctx, req.QuoteID)
	if err != nil {
		return err
	}
	if len(req.Files) != len(q.Files) {
		return validationError(fmt.Sprintf("Quote is for %d files, got %d.", len(q.Files), len(req.Files)))
	}

	if err := s.authenticate(ctx, q.UserAddress, req.Nonce, req.Signature, auth.QuoteMessage(req.QuoteID, req.Nonce)); err != nil {
		return err
	}

	if err := checkWaiting(q.Status); err != nil {
		return err
	}

	token, ok := s.tokens.Get(q.ChainID, q.TokenAddress)
	if !ok {
		return validationError("Payment token no longer accepted.")
	}
	be, err := s.backends.Connect(ctx, token)
	if err != nil {
		return internalError("Error connecting to payment backend.", err)
	}

	price, err := s.checkPrice(ctx, q, be)
	if err != nil {
		return err
	}
	if err := s.checkFunds(ctx, q, be, price); err != nil {
		return err
	}
	if s.cfg.StrictGasCheck {
		if err := s.checkGas(ctx, q, be, price); err != nil {
			return err
		}
	}

	if err := s.transition(ctx, q.ID, quote.StatusWaiting, quote.StatusPaymentStart); err != nil {
		if errors.Is(err, db.ErrStatusConflict) {
			return newError(KindConflict, "Quote is being processed.", err)
		}
		return internalError("Error occurred while updating quote status.", err)
	}

	st := &settlement{
		quote:   q,
		files:   append([]string(nil), req.Files...),
		price:   price,
		token:   token,
		backend: be,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.Background(), st)
	}()

	return nil
}

func checkWaiting(status quote.Status) error {
	switch {
	case status == quote.StatusWaiting:
		return nil
	case status == quote.StatusUploadEnd:
		return newError(KindConflict, "Quote has been completed.", nil)
	case status.Failed():
		return newError(KindConflict, fmt.Sprintf("Quote has failed with status %s.", status), nil)
	default:
		return newError(KindConflict, "Quote is being processed.", nil)
	}
}

// checkPrice re-prices the quote and fails if the live price has caught up
// with the quoted amount.
func (s *Service) checkPrice(ctx context.Context, q *quote.Quote, be *backend.Backend) (*big.Int, error) {
	quoted, ok := new(big.Int).SetString(q.TokenAmount, 10)
	if !ok {
		return nil, internalError("Error occurred while reading quote.", fmt.Errorf("invalid token amount %q", q.TokenAmount))
	}

	price, err := be.Storage.Price(ctx, q.TotalLength())
	if err != nil {
		return nil, internalError("Error occurred while pricing the quote.", err)
	}
	if price.Cmp(quoted) >= 0 {
		return nil, newError(KindPricing, "Quoted tokenAmount is less than current rate. Quote again.", nil)
	}
	return price, nil
}

func (s *Service) checkFunds(ctx context.Context, q *quote.Quote, be *backend.Backend, price *big.Int) error {
	allowance, err := be.Chain.Allowance(ctx, q.UserAddress, be.Chain.Address())
	if err != nil {
		return internalError("Error occurred while checking allowance.", err)
	}
	if allowance.Cmp(price) < 0 {
		return newError(KindPricing, "Allowance is less than current rate.", nil)
	}

	balance, err := be.Chain.BalanceOf(ctx, q.UserAddress)
	if err != nil {
		return internalError("Error occurred while checking balance.", err)
	}
	if balance.Cmp(price) < 0 {
		return newError(KindPricing, "Insufficient balance.", nil)
	}
	return nil
}

// checkGas fails when the server wallet cannot pay for the whole settlement
// sequence, which would strand pulled funds part way through.
func (s *Service) checkGas(ctx context.Context, q *quote.Quote, be *backend.Backend, price *big.Int) error {
	log := s.log.With("quote_id", q.ID)

	fundAddress, err := be.Storage.FundAddress(ctx)
	if err != nil {
		return newError(KindUnavailable, "Storage node unavailable.", err)
	}
	gas, err := be.Chain.EstimateSettlementGas(ctx, q.UserAddress, price, fundAddress)
	if err != nil {
		return newError(KindUnavailable, "Unable to estimate settlement fees.", err)
	}
	cost := s.feeData(ctx, log, be.Chain).Cost(gas)

	native, err := be.Chain.NativeBalance(ctx, be.Chain.Address())
	if err != nil {
		return newError(KindUnavailable, "Unable to read server balance.", err)
	}
	if native.Cmp(cost) < 0 {
		log.Warnw("server wallet cannot cover settlement gas", "balance", native, "cost", cost, "gas", gas)
		return newError(KindUnavailable, "Server cannot cover settlement fees. Try again later.", nil)
	}
	return nil
}

// run performs payment and upload for a quote already in PAYMENT_START.
// Every exit writes a terminal status or logs why it could not.
func (s *Service) run(ctx context.Context, st *settlement) {
	var (
		q     = st.quote
		be    = st.backend
		log   = s.log.With("quote_id", q.ID, "chain_id", q.ChainID)
		start = time.Now()
	)

	finish := func(from, to quote.Status) {
		settlementDuration.Observe(time.Since(start).Seconds())
		settlementsTotal.WithLabelValues(to.String()).Inc()
		if err := s.transition(ctx, q.ID, from, to); err != nil {
			log.Errorw("failed to record terminal status", "from", from, "to", to, "error", err)
			s.notify(ctx, log, fmt.Sprintf("quote %s: could not record status %s: %v", q.ID, to, err))
		}
	}

	fees := s.feeData(ctx, log, be.Chain)

	tx, err := be.Chain.TransferFrom(ctx, q.UserAddress, be.Chain.Address(), st.price, fees)
	if err != nil {
		log.Errorw("payment pull failed", "amount", st.price, "error", err)
		finish(quote.StatusPaymentStart, quote.StatusPaymentPullFailed)
		return
	}
	log.Infow("payment pulled", "tx", tx, "amount", st.price)

	if err := s.transition(ctx, q.ID, quote.StatusPaymentStart, quote.StatusPaymentPullSuccess); err != nil {
		log.Errorw("failed to record payment pull", "tx", tx, "error", err)
		s.notify(ctx, log, fmt.Sprintf("quote %s: payment pulled in %s but status update failed: %v", q.ID, tx, err))
		// Funds moved, but only the failure sink is reachable from here.
		finish(quote.StatusPaymentStart, quote.StatusPaymentPullFailed)
		return
	}

	fundTx, err := be.Storage.Fund(ctx, st.price, fees)
	if err != nil {
		log.Errorw("storage funding failed", "amount", st.price, "error", err)
		finish(quote.StatusPaymentPullSuccess, quote.StatusPaymentPushFailed)
		s.notify(ctx, log, fmt.Sprintf("quote %s: %s pulled from %s in %s but storage funding failed: %v", q.ID, st.price, q.UserAddress, tx, err))
		return
	}
	log.Infow("storage funded", "tx", fundTx)

	if err := s.transition(ctx, q.ID, quote.StatusPaymentPullSuccess, quote.StatusUploadStart); err != nil {
		log.Errorw("failed to record upload start", "error", err)
		s.notify(ctx, log, fmt.Sprintf("quote %s: funded in %s but status update failed: %v", q.ID, fundTx, err))
		finish(quote.StatusPaymentPullSuccess, quote.StatusPaymentPushFailed)
		return
	}

	result := s.runPipeline(ctx, q, st.files, be.Storage)
	finish(quote.StatusUploadStart, result)

	switch result {
	case quote.StatusUploadEnd:
		log.Infow("upload complete", "files", len(st.files), "elapsed", time.Since(start))
		if st.token.Unwrap {
			s.unwrap(ctx, log, be, st.price)
		}
	case quote.StatusUploadInternalError:
		s.notify(ctx, log, fmt.Sprintf("quote %s: upload ended with %s, receipts may need reconciling", q.ID, result))
	default:
		log.Warnw("upload failed", "status", result)
	}
}

// unwrap converts the pulled wrapped token back into native currency to
// replenish the wallet that funded storage. Failure leaves the quote as is.
func (s *Service) unwrap(ctx context.Context, log *zap.SugaredLogger, be *backend.Backend, amount *big.Int) {
	tx, err := be.Chain.Withdraw(ctx, amount, s.feeData(ctx, log, be.Chain))
	if err != nil {
		log.Warnw("unwrap failed", "amount", amount, "error", err)
		return
	}
	log.Infow("unwrapped payment", "tx", tx, "amount", amount)
}
