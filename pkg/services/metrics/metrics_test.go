package metrics

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/nspcc-dev/pesto-go/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestPrometheusService(t *testing.T) {
	cnt := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pesto",
		Name:      "metrics_test_counter",
		Help:      "Test counter",
	})
	prometheus.MustRegister(cnt)
	t.Cleanup(func() { prometheus.Unregister(cnt) })
	cnt.Add(3)

	srv := NewPrometheusService(config.BasicService{
		Enabled:   true,
		Addresses: []string{"localhost:0", "localhost:0"},
	}, zaptest.NewLogger(t))
	require.Equal(t, "Prometheus", srv.Name())
	// Duplicates are collapsed.
	require.Len(t, srv.Addresses(), 1)
	require.NoError(t, srv.Start())
	t.Cleanup(srv.ShutDown)

	code, body := get(t, "http://"+srv.Addresses()[0]+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.True(t, strings.Contains(body, "pesto_metrics_test_counter 3"), body)
}

func TestPprofService(t *testing.T) {
	srv := NewPprofService(config.BasicService{
		Enabled:   true,
		Addresses: []string{"localhost:0"},
	}, zaptest.NewLogger(t))
	require.NoError(t, srv.Start())
	// Second start is a no-op.
	require.NoError(t, srv.Start())
	t.Cleanup(srv.ShutDown)

	code, _ := get(t, "http://"+srv.Addresses()[0]+"/debug/pprof/cmdline")
	require.Equal(t, http.StatusOK, code)
}

func TestDisabledService(t *testing.T) {
	srv := NewPrometheusService(config.BasicService{Addresses: []string{"localhost:0"}}, zaptest.NewLogger(t))
	require.NoError(t, srv.Start())
	srv.ShutDown()
	require.Nil(t, NewPprofService(config.BasicService{}, nil))
}

func TestStartFailure(t *testing.T) {
	srv := NewPrometheusService(config.BasicService{
		Enabled:   true,
		Addresses: []string{"256.0.0.1:0"},
	}, zaptest.NewLogger(t))
	require.Error(t, srv.Start())
}
