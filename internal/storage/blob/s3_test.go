package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemstr/arweave-upload/internal/fetcher"
)

type mockS3 struct {
	Output *s3.GetObjectOutput
	Err    error
	Input  *s3.GetObjectInput
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.Input = params
	return m.Output, m.Err
}

func TestFetch(t *testing.T) {
	var tests = []struct {
		name        string
		output      *s3.GetObjectOutput
		err         error
		length      int64
		contentType string
		wantErr     error
	}{
		{
			name: "with length and type",
			output: &s3.GetObjectOutput{
				Body:          io.NopCloser(strings.NewReader("data")),
				ContentLength: 4,
				ContentType:   aws.String("audio/wave"),
			},
			length:      4,
			contentType: "audio/wave",
		},
		{
			name: "unknown length",
			output: &s3.GetObjectOutput{
				Body: io.NopCloser(strings.NewReader("data")),
			},
			length: -1,
		},
		{
			name:    "missing key",
			err:     &types.NoSuchKey{},
			wantErr: fetcher.ErrNotFound,
		},
		{
			name: "transport error",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockS3{Output: tt.output, Err: tt.err}
			s := &S3{client: m}

			obj, err := s.Fetch(context.Background(), fetcher.Ref{Scheme: "s3", Host: "bucket", Path: "a/b.wav"})
			if tt.err != nil {
				assert.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.length, obj.ContentLength)
			assert.Equal(t, tt.contentType, obj.ContentType)
			assert.Equal(t, "bucket", *m.Input.Bucket)
			assert.Equal(t, "a/b.wav", *m.Input.Key)
		})
	}
}
