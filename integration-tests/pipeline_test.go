package integration_tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"stockcluster/cmd"
	"stockcluster/internal/config"
	"stockcluster/internal/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func csvConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.Source.PricesCsv = filepath.Join("testdata", "prices.csv")
	cfg.Source.CompaniesCsv = filepath.Join("testdata", "companies.csv")
	cfg.Pipeline.Since = "2020-01-01"
	cfg.Pipeline.MinCenters = 1
	cfg.Pipeline.MaxCenters = 3
	cfg.Pipeline.ComposeCenters = 2
	cfg.Pipeline.Restarts = 5
	cfg.Pipeline.Seed = 42
	cfg.Umap.Epochs = 50
	cfg.Output.Dir = t.TempDir()
	cfg.Output.CacheReturns = true
	return cfg
}

func hitEndpoint(baseUrl, route string, method string, payload interface{}, target interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	body := bytes.NewReader(payloadBytes)

	req, err := http.NewRequest(method, baseUrl+"/"+route, body)
	if err != nil {
		return err
	}

	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed with status %d and response body: %s", resp.StatusCode, string(responseBody))
	}

	return json.Unmarshal(responseBody, target)
}

func Test_csvPipeline(t *testing.T) {
	cfg := csvConfig(t)
	handler, err := cmd.InitializeDependencies(cfg)
	require.NoError(t, err)
	defer cmd.CloseDependencies(handler)

	server := httptest.NewServer(handler.InitializeRouterEngine())
	defer server.Close()

	t.Run("run writes every output", func(t *testing.T) {
		runResponse := map[string]int{}
		err := hitEndpoint(server.URL, "run", http.MethodPost, nil, &runResponse)
		require.NoError(t, err)
		require.Equal(t, 3, runResponse["symbols"])
		require.Equal(t, 4, runResponse["dates"])
		require.Equal(t, 0, runResponse["skipped"])

		for _, name := range []string{
			"scree.csv",
			"clusters.csv",
			"returns.csv",
			filepath.Join("charts", "scree.png"),
			filepath.Join("charts", "clusters.png"),
		} {
			_, err := os.Stat(filepath.Join(cfg.Output.Dir, name))
			require.NoError(t, err, name)
		}
	})

	t.Run("every symbol is clustered and placed", func(t *testing.T) {
		response := struct {
			CenterCount int                      `json:"centerCount"`
			Results     []domain.AnnotatedResult `json:"results"`
			Warnings    []string                 `json:"warnings"`
		}{}
		err := hitEndpoint(server.URL, "clusters", http.MethodGet, nil, &response)
		require.NoError(t, err)

		require.Equal(t, 2, response.CenterCount)
		require.Len(t, response.Results, 3)
		require.Empty(t, response.Warnings)
		for _, r := range response.Results {
			require.NotNil(t, r.V1, r.Symbol)
			require.NotNil(t, r.V2, r.Symbol)
			require.NotNil(t, r.Sector, r.Symbol)
			require.Contains(t, []int{0, 1}, r.Cluster)
		}
	})

	t.Run("scree never increases", func(t *testing.T) {
		scree := []domain.ScreePoint{}
		err := hitEndpoint(server.URL, "scree", http.MethodGet, nil, &scree)
		require.NoError(t, err)
		require.Len(t, scree, 3)
		require.Equal(t, 1, scree[0].CenterCount)
		for i := 1; i < len(scree); i++ {
			require.LessOrEqual(t, scree[i].TotalWithinSS, scree[i-1].TotalWithinSS)
		}
		require.InDelta(t, 0, scree[2].TotalWithinSS, 1e-12)
	})

	t.Run("second run reads the return cache", func(t *testing.T) {
		require.NoError(t, os.Rename(cfg.Source.PricesCsv, cfg.Source.PricesCsv+".bak"))
		defer os.Rename(cfg.Source.PricesCsv+".bak", cfg.Source.PricesCsv)

		runResponse := map[string]int{}
		err := hitEndpoint(server.URL, "run", http.MethodPost, nil, &runResponse)
		require.NoError(t, err)
		require.Equal(t, 3, runResponse["symbols"])
		require.Equal(t, 4, runResponse["dates"])
	})
}
