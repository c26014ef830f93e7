package services

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/voxnote/voxnote-backend/internal/logger"
)

type TranscriptionResult struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// TranscriptionService is the speech-to-text adapter. Meeting recordings are
// long, so everything goes through GCS URIs and LongRunningRecognize; the
// call-level timeout is the only cancellation mechanism.
type TranscriptionService interface {
	TranscribeGCS(ctx context.Context, gcsURI string, keyterms []string) (*TranscriptionResult, error)
	Close() error
}

type transcriptionService struct {
	log    *logger.Logger
	client *speech.Client

	languageCode string
	maxRetries   int
	callTimeout  time.Duration
}

func NewTranscriptionService(log *logger.Logger) (TranscriptionService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	slog := log.With("service", "TranscriptionService")

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	lang := strings.TrimSpace(os.Getenv("SPEECH_LANGUAGE_CODE"))
	if lang == "" {
		lang = "en-US"
	}

	ctx := context.Background()

	var c *speech.Client
	var err error
	if creds != "" {
		c, err = speech.NewClient(ctx, option.WithCredentialsFile(creds))
	} else {
		c, err = speech.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}

	return &transcriptionService{
		log:          slog,
		client:       c,
		languageCode: lang,
		maxRetries:   3,
		callTimeout:  30 * time.Minute,
	}, nil
}

func (s *transcriptionService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *transcriptionService) TranscribeGCS(ctx context.Context, gcsURI string, keyterms []string) (*TranscriptionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}

	rcfg := &speechpb.RecognitionConfig{
		LanguageCode:               s.languageCode,
		EnableAutomaticPunctuation: true,
		Encoding:                   inferSpeechEncoding(gcsURI),
	}
	if len(keyterms) > 0 {
		rcfg.SpeechContexts = []*speechpb.SpeechContext{{Phrases: keyterms}}
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: rcfg,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI}},
	}

	resp, err := s.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := s.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize(gcs): %w", err)
	}

	var full strings.Builder
	for _, r := range resp.GetResults() {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		if strings.TrimSpace(alt.Transcript) == "" {
			continue
		}
		if full.Len() > 0 {
			full.WriteString(" ")
		}
		full.WriteString(strings.TrimSpace(alt.Transcript))
	}

	return &TranscriptionResult{
		Text:     strings.TrimSpace(full.String()),
		Language: s.languageCode,
	}, nil
}

func (s *transcriptionService) retryLR(ctx context.Context, call func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := 2 * time.Second
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableGRPC(err) || attempt == s.maxRetries {
			return nil, err
		}
		sleep := backoff + time.Duration(rand.Int63n(int64(backoff/2)))
		s.log.Warn("Speech request retrying", "attempt", attempt+1, "sleep", sleep.String(), "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func isRetryableGRPC(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
		return true
	}
	return false
}

func inferSpeechEncoding(gcsURI string) speechpb.RecognitionConfig_AudioEncoding {
	ext := strings.ToLower(filepath.Ext(gcsURI))
	switch ext {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		// leave unspecified; API can sometimes auto-detect in practice
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}
