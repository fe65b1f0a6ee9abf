package di

import (
	"bytes"
	"context"
	"testing"

	"github.com/mikey/mail-risk-analyzer/internal/adapters/filter"
	"github.com/mikey/mail-risk-analyzer/internal/adapters/httpapi"
	"github.com/mikey/mail-risk-analyzer/internal/core"
	"github.com/mikey/mail-risk-analyzer/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const phishingMessage = "From: \"PayPal\" <security@paypa1.com>\r\n" +
	"To: victim@example.com\r\n" +
	"Subject: Verify your account\r\n" +
	"Received-SPF: fail\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please verify at http://xn--pypal-4ve.com/login\r\n"

func TestBuildContainer_Frontends(t *testing.T) {
	t.Setenv("MAIL_RISK_IMAP_HOST", "127.0.0.1")
	t.Setenv("MAIL_RISK_LLM_PROVIDER", "none")
	t.Setenv("MAIL_RISK_FILTER_ENABLED", "true")

	container, err := BuildContainer("test")
	require.NoError(t, err)

	err = container.Invoke(func(frontends []ports.Frontend, service *core.RiskAnalysisService) {
		require.Len(t, frontends, 2)
		assert.IsType(t, &httpapi.Server{}, frontends[0])
		assert.IsType(t, &filter.SMTPFilter{}, frontends[1])

		stats := service.Stats()
		assert.Equal(t, 0, stats.Total)
	})
	require.NoError(t, err)
}

func TestBuildContainer_MissingIMAPHost(t *testing.T) {
	t.Setenv("MAIL_RISK_IMAP_HOST", "")
	t.Setenv("MAIL_RISK_LLM_PROVIDER", "none")

	container, err := BuildContainer("test")
	require.NoError(t, err)

	err = container.Invoke(func(*core.RiskAnalysisService) {})
	assert.ErrorContains(t, err, "imap host is required")
}

func TestBuildCLIContainer_ScoresMessage(t *testing.T) {
	var out bytes.Buffer
	flags := &CLIFlags{Provider: "none", JSONOutput: true, Out: &out}

	container, err := BuildCLIContainer(flags, "test")
	require.NoError(t, err)

	err = container.Invoke(func(cli *filter.CLIFilter, service *core.RiskAnalysisService) {
		result, err := cli.ProcessMessage(context.Background(), []byte(phishingMessage))
		require.NoError(t, err)
		assert.True(t, result.AI.IsDegraded())
		assert.Equal(t, "fail", result.Headers.SPF)
		assert.NotEmpty(t, result.Links)
		assert.Contains(t, out.String(), `"risk_level"`)

		_, err = service.Analyze(context.Background(), 3)
		assert.ErrorIs(t, err, ErrNoMailbox)
	})
	require.NoError(t, err)
}

func TestCreateConfigFromFlags(t *testing.T) {
	cfg := createConfigFromFlags(&CLIFlags{
		Provider:        "openai",
		OpenAIAPIKey:    "sk-test",
		OpenAIModelName: "gpt-4o-mini",
		MaxTokens:       256,
		Brands:          []string{"example-bank.com"},
	})

	openaiCfg := cfg.GetOpenAI()
	llm, err := cfg.GetLLM()
	require.NoError(t, err)
	assert.Equal(t, "openai", llm.Provider)
	assert.Equal(t, "sk-test", openaiCfg.APIKey)
	assert.Equal(t, "gpt-4o-mini", openaiCfg.ModelName)
	assert.Equal(t, 256, openaiCfg.MaxTokens)
	assert.Equal(t, "https://openrouter.ai/api/v1", openaiCfg.BaseURL)
	assert.Equal(t, []string{"example-bank.com"}, cfg.GetAnalysis().Brands)
}
