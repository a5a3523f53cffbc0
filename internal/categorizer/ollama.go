// Package categorizer turns a free text transaction description into a
// structured candidate using a local Ollama model.
package categorizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

// ErrNotCategorized is returned whenever the text could not be turned into a
// usable candidate.
var ErrNotCategorized = errors.New("transaction not categorized")

type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Attempts   uint
	RetryDelay time.Duration
}

// Ollama calls the /api/generate endpoint of an Ollama server.
type Ollama struct {
	httpClient *http.Client
	baseURL    string
	model      string
	attempts   uint
	retryDelay time.Duration
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Ollama {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Ollama{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		attempts:   cfg.Attempts,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type categorized struct {
	Valor     json.RawMessage `json:"valor"`
	Categoria string          `json:"categoria"`
	Descricao string          `json:"descricao"`
	Nota      string          `json:"nota"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama API error (status %d): %s", e.code, e.body)
}

// Categorize asks the model to classify text. Every failure, including an
// unreachable server, wraps ErrNotCategorized.
func (c *Ollama) Categorize(ctx context.Context, text string) (*model.Candidate, error) {
	var raw string
	err := retry.Do(
		func() error {
			var err error
			raw, err = c.generate(ctx, buildPrompt(text))
			return err
		},
		retry.RetryIf(retryable),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		c.logger.Warn("ollama request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNotCategorized, err)
	}

	candidate, err := parseCandidate(raw, text)
	if err != nil {
		c.logger.Warn("unusable ollama response", "error", err, "response", raw)
		return nil, err
	}
	return candidate, nil
}

func (c *Ollama) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return out.Response, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

var (
	fenceRe  = regexp.MustCompile("```(?:json)?\\n?")
	objectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseCandidate decodes the model output. A missing amount is recovered from
// the original text; an unknown category is inferred from keywords.
func parseCandidate(raw, text string) (*model.Candidate, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(strings.TrimSpace(raw), ""))
	if m := objectRe.FindString(cleaned); m != "" {
		cleaned = m
	}

	var out categorized
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrNotCategorized, err)
	}

	out.Descricao = strings.TrimSpace(out.Descricao)
	if out.Categoria == "" || out.Descricao == "" {
		return nil, fmt.Errorf("%w: incomplete response", ErrNotCategorized)
	}

	category, ok := model.ParseCategory(out.Categoria)
	if !ok {
		category = InferCategory(out.Descricao)
	}

	amount, ok := parseValor(out.Valor)
	if !ok {
		if amount, ok = textparse.ParseAmount(text); !ok {
			return nil, fmt.Errorf("%w: no amount", ErrNotCategorized)
		}
	}

	return &model.Candidate{
		Amount:      amount.Abs().Round(2),
		Category:    category,
		Description: out.Descricao,
		Note:        strings.TrimSpace(out.Nota),
	}, nil
}

// parseValor accepts a JSON number or a string such as "1.500,00".
func parseValor(raw json.RawMessage) (decimal.Decimal, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, !d.IsZero()
	}
	return textparse.ParseAmount(s)
}

func buildPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Você é um assistente financeiro. Analise a seguinte descrição de transação financeira (pode ser um gasto ou um ganho) e categorize-a.\n\n")
	fmt.Fprintf(&b, "Descrição: %q\n\n", text)

	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	fmt.Fprintf(&b, "Categorias disponíveis: %s\n\n", strings.Join(names, ", "))

	b.WriteString(`IMPORTANTE:
- Por PADRÃO, assuma que é um GASTO/DESPESA (use ALIMENTACAO, TRANSPORTE, LAZER, SAUDE, MORADIA, ESTUDOS ou TRABALHO)
- Use LUCROS APENAS se houver palavras explícitas de ganho: "recebi", "ganhei", "lucrei", "salário", "pagamento recebido", "venda de", "renda"
- NUNCA use LUCROS para gastos comuns como "aluguel", "conta", "mensalidade", "assinatura"
- MORADIA: aluguel, condomínio, luz, água, gás, IPTU, internet residencial
- ALIMENTACAO: comida, restaurante, mercado, delivery, lanche
- TRANSPORTE: uber, gasolina, estacionamento, ônibus, metrô
- TRABALHO: despesas de trabalho, materiais, equipamentos profissionais

Extraia da descrição:
1. O valor numérico (se houver)
2. A categoria mais apropriada (use EXATAMENTE uma das categorias acima)
3. Uma descrição curta da transação

Responda APENAS em formato JSON válido, sem markdown ou formatação adicional:
{
  "valor": número,
  "categoria": "CATEGORIA_ESCOLHIDA",
  "descricao": "descrição curta",
  "nota": "opcional - nota adicional se houver"
}

Se não conseguir extrair o valor, use 0. Se não tiver certeza da categoria, use a que melhor se encaixa.`)
	return b.String()
}
