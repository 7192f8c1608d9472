package service

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/stemstr/arweave-upload/internal/backend"
	"github.com/stemstr/arweave-upload/internal/mimes"
	"github.com/stemstr/arweave-upload/internal/quote"
	"github.com/stemstr/arweave-upload/internal/storage/spool"
)

// runPipeline uploads every file of q concurrently and returns UPLOAD_END if
// all of them recorded a receipt, otherwise the failure status of the first
// file to fail. Files still in flight after a failure run to completion and
// keep their receipts.
func (s *Service) runPipeline(ctx context.Context, q *quote.Quote, refs []string, storage backend.StorageClient) quote.Status {
	results := make(chan quote.Status, len(refs))

	for i, ref := range refs {
		s.wg.Add(1)
		go func(index int, ref string) {
			defer s.wg.Done()
			results <- s.uploadFile(ctx, q.ID, index, ref, storage)
		}(i, ref)
	}

	for range refs {
		if st := <-results; st != quote.StatusUploadEnd {
			return st
		}
	}
	return quote.StatusUploadEnd
}

// uploadFile moves one file from its source to storage and records the
// receipt. It returns UPLOAD_END on success or the failure status.
func (s *Service) uploadFile(ctx context.Context, quoteID string, index int, ref string, storage backend.StorageClient) quote.Status {
	log := s.log.With("quote_id", quoteID, "index", index, "ref", ref)

	f, err := s.repo.GetFile(ctx, quoteID, index)
	if err != nil || f == nil {
		log.Errorw("quoted file missing", "error", err)
		return quote.StatusUploadInternalError
	}

	obj, err := s.fetcher.Fetch(ctx, ref)
	if err != nil {
		log.Errorw("download failed", "error", err)
		return quote.StatusUploadDownloadFailed
	}
	defer obj.Body.Close()

	var src io.Reader = obj.Body
	if obj.ContentLength >= 0 {
		if obj.ContentLength > f.Length {
			log.Errorw("actual file length exceeds quote", "quoted", f.Length, "actual", obj.ContentLength)
			return quote.StatusUploadActualFileLenExceedsQuote
		}
	} else {
		log.Warnw("source did not report file length, spooling to check it against the quote", "quoted", f.Length)
		spooled, err := s.spool.Buffer(ctx, obj.Body, f.Length)
		if errors.Is(err, spool.ErrTooLarge) {
			log.Errorw("actual file length exceeds quote", "quoted", f.Length)
			return quote.StatusUploadActualFileLenExceedsQuote
		}
		if err != nil {
			log.Errorw("download failed", "error", err)
			return quote.StatusUploadDownloadFailed
		}
		defer spooled.Close()
		src = spooled
	}

	contentType := mimes.Resolve(obj.ContentType, ref)
	body := &countingReader{r: src}
	receipt, err := storage.Upload(ctx, body, contentType)
	uploadedBytes.Add(float64(body.n))
	if err != nil {
		log.Errorw("upload failed", "bytes", body.n, "error", err)
		return quote.StatusUploadUploadFailed
	}

	if err := s.repo.SetReceipt(ctx, quoteID, index, receipt); err != nil {
		// The bytes are stored but the receipt is lost to us.
		log.Errorw("failed to record receipt", "receipt", receipt, "error", err)
		return quote.StatusUploadInternalError
	}
	log.Infow("file uploaded", "receipt", receipt, "bytes", body.n, "content_type", contentType)

	s.verify(ctx, log, storage, receipt)

	return quote.StatusUploadEnd
}

// verify confirms the node knows about receipt. It only logs.
func (s *Service) verify(ctx context.Context, log *zap.SugaredLogger, storage backend.StorageClient, receipt string) {
	if s.cfg.VerifyTimeout <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.VerifyTimeout)
	defer cancel()

	if err := storage.Verify(ctx, receipt); err != nil {
		log.Warnw("receipt not confirmed", "receipt", receipt, "error", err)
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
