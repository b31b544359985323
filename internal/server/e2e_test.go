package server_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/sentimentgate"
	"github.com/ineyio/sentimentgate/client"
	"github.com/ineyio/sentimentgate/engine/mock"
	"github.com/ineyio/sentimentgate/internal/server"
	"github.com/ineyio/sentimentgate/internal/server/routes"
	"github.com/ineyio/sentimentgate/quota"
	"github.com/ineyio/sentimentgate/storage/memory"
)

func startStack(t *testing.T, used, max int64) (*httptest.Server, *quota.MemoryStore, *memory.Store, *mock.Engine) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	ledger := quota.NewMemoryStore()
	cfg := sentimentgate.DefaultConfig()
	cfg.Accounts = []sentimentgate.AccountConfig{{ID: "acct1", SecretKey: "sk-1", MaxRequests: max}}
	require.NoError(t, sentimentgate.ProvisionAccounts(context.Background(), ledger, cfg.Accounts))
	for range used {
		require.NoError(t, ledger.Commit(context.Background(), sentimentgate.Reservation{AccountID: "acct1"}))
	}

	objects := memory.New(ts.URL)
	engine := mock.New()
	svc, err := sentimentgate.NewService(cfg, ledger, engine, objects, sentimentgate.WithLogger(log))
	require.NoError(t, err)

	s := server.New(log, server.Options{ServiceName: "sentimentgate-test"})
	s.RegisterRouter(routes.NewAPIRoutes(svc, nil, log))
	s.RegisterRouter(routes.NewObjectRoutes(objects))
	handler = s.Handler()
	return ts, ledger, objects, engine
}

func TestPipelineEndToEnd(t *testing.T) {
	ts, ledger, objects, engine := startStack(t, 0, 5)

	var states []client.State
	p := client.NewPipeline(client.New(ts.URL, "sk-1", client.WithHTTPClient(ts.Client())),
		client.OnStateChange(func(_, to client.State) { states = append(states, to) }))

	payload := []byte("\x00\x00\x00\x18ftypmp42")
	analysis, err := p.Run(context.Background(), client.Upload{
		Name:        "holiday.mp4",
		ContentType: "video/mp4",
		Size:        int64(len(payload)),
		Body:        bytes.NewReader(payload),
	})
	require.NoError(t, err)

	assert.Equal(t, "positive", analysis.OverallSentiment)
	assert.Len(t, analysis.Segments, 2)
	assert.Equal(t, client.StateIdle, p.State())
	assert.Equal(t, []client.State{client.StateUploading, client.StateAnalyzing, client.StateIdle}, states)

	u, err := ledger.Usage(context.Background(), "acct1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.RequestsUsed)

	reqs := engine.Requests()
	require.Len(t, reqs, 1)
	obj, ok := objects.Get(reqs[0].Key)
	require.True(t, ok)
	assert.Equal(t, payload, obj.Data)
	assert.Equal(t, "video/mp4", obj.ContentType)
}

func TestPipelineEndToEnd_QuotaExhausted(t *testing.T) {
	ts, ledger, _, engine := startStack(t, 5, 5)

	p := client.NewPipeline(client.New(ts.URL, "sk-1", client.WithHTTPClient(ts.Client())))
	_, err := p.Run(context.Background(), client.Upload{
		Name: "clip.mov", ContentType: "video/quicktime", Size: 1, Body: bytes.NewReader([]byte{1}),
	})

	var se *client.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, sentimentgate.StageAnalyze, se.Stage)
	assert.Equal(t, "Monthly quota exceeded", se.Message)
	assert.ErrorIs(t, err, sentimentgate.ErrQuotaExceeded)
	assert.Zero(t, engine.CallCount())

	u, _ := ledger.Usage(context.Background(), "acct1")
	assert.Equal(t, int64(5), u.RequestsUsed)
}

func TestPipelineEndToEnd_ContentTypeMismatch(t *testing.T) {
	ts, _, _, engine := startStack(t, 0, 5)

	p := client.NewPipeline(client.New(ts.URL, "sk-1", client.WithHTTPClient(ts.Client())))
	_, err := p.Run(context.Background(), client.Upload{
		Name: "clip.mp4", ContentType: "application/octet-stream", Size: 1, Body: bytes.NewReader([]byte{1}),
	})

	var se *client.StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, sentimentgate.StageUpload, se.Stage)
	assert.Equal(t, client.MsgUpload, se.Message)
	assert.ErrorIs(t, err, sentimentgate.ErrTransport)
	assert.NotErrorIs(t, err, sentimentgate.ErrInvalidInput)
	assert.Zero(t, engine.CallCount())
}
