package gateway

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strings"

	"github.com/vitwit/x402-gateway/logger"
	"github.com/vitwit/x402-gateway/metrics"
	"github.com/vitwit/x402-gateway/types"
	"github.com/vitwit/x402-gateway/utils"
)

// DemoRunner performs the attested AI call behind /tee-demo.
type DemoRunner interface {
	Configured() bool
	RunDemo(ctx context.Context) (*types.DemoResult, error)
}

// WeatherReport is the body of /weather.
type WeatherReport struct {
	Report struct {
		Weather     string `json:"weather"`
		Temperature int    `json:"temperature"`
	} `json:"report"`
}

// WeatherHandler answers with a fixed report.
func WeatherHandler() http.Handler {
	var body WeatherReport
	body.Report.Weather = "sunny"
	body.Report.Temperature = 70

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	})
}

// ConfigErrorHandler answers every request with a configuration error.
func ConfigErrorHandler(message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error:   "configuration error",
			Message: message,
			Code:    types.ErrConfiguration,
		})
	})
}

// NewTEEDemoHandler runs the chat and signature calls and returns both. When
// the runner has no credential the handler never calls out.
func NewTEEDemoHandler(runner DemoRunner, log logger.Logger, rec metrics.Recorder) http.Handler {
	if !runner.Configured() {
		return ConfigErrorHandler("TEE_API_KEY is not set")
	}
	log = logger.With(log, map[string]any{"component": "tee_demo"})
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := runner.RunDemo(r.Context())
		if err != nil {
			fields := map[string]any{
				"error":      err,
				"request_id": RequestIDFromContext(r.Context()),
			}
			outcome := OutcomeError
			var upstream *types.UpstreamError
			if errors.As(err, &upstream) {
				fields["stage"] = upstream.Stage
				fields["status"] = upstream.Status
				outcome = upstream.Stage + "_failed"
			}
			log.Warn("tee demo failed", fields)
			rec.IncCounter(metrics.EventUpstream, map[string]string{"route": r.URL.Path, "outcome": outcome})
			writeError(w, err)
			return
		}

		rec.IncCounter(metrics.EventUpstream, map[string]string{"route": r.URL.Path, "outcome": "ok"})
		writeJSON(w, http.StatusOK, result)
	})
}

// MountWeather adds the paid weather route.
func (g *Gateway) MountWeather(path, price string, requirement *types.PaymentRequirements) {
	g.HandlePaid(path, price, requirement, WeatherHandler())
}

// MountTEEDemo adds the paid TEE route. Without a credential the route is
// mounted ungated and answers with a configuration error, so neither the
// facilitator nor the provider is contacted.
func (g *Gateway) MountTEEDemo(path, price string, requirement *types.PaymentRequirements, runner DemoRunner) {
	h := NewTEEDemoHandler(runner, g.logger, g.metrics)
	if !runner.Configured() {
		g.logger.Warn("tee demo disabled, TEE_API_KEY is not set", map[string]any{"route": path})
		g.Handle(path, h)
		return
	}
	g.HandlePaid(path, price, requirement, h)
}

type supportedKind struct {
	X402Version       int    `json:"x402Version"`
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Route             string `json:"route"`
	Price             string `json:"price"`
	Asset             string `json:"asset"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Amount            string `json:"amount,omitempty"`
	Chain             string `json:"chain"`
	Testnet           bool   `json:"testnet"`
}

// displayAmount renders the minor-unit amount in whole tokens when the asset
// is the network's USDC deployment.
func displayAmount(req *types.PaymentRequirements) string {
	info, ok := types.Network(req.Network).DefaultAsset()
	if !ok || !strings.EqualFold(info.Address, req.Asset) {
		return ""
	}
	v, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return ""
	}
	return utils.FormatAmount(v, info.Decimals) + " " + info.Symbol
}

func (g *Gateway) supportedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routes := g.Routes()
		kinds := make([]supportedKind, 0, len(routes))
		for _, rt := range routes {
			network := types.Network(rt.Requirement.Network)
			kinds = append(kinds, supportedKind{
				X402Version:       int(types.X402Version1),
				Scheme:            rt.Requirement.Scheme,
				Network:           rt.Requirement.Network,
				Route:             rt.Path,
				Price:             rt.Price,
				Asset:             rt.Requirement.Asset,
				PayTo:             rt.Requirement.PayTo,
				MaxAmountRequired: rt.Requirement.MaxAmountRequired,
				Amount:            displayAmount(rt.Requirement),
				Chain:             string(network.Family()),
				Testnet:           network.IsTestnet(),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"kinds": kinds})
	})
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:   "not found",
			Message: "no route for " + r.URL.Path,
		})
	})
}

func methodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{
			Error:   "method not allowed",
			Message: r.Method + " is not allowed on " + r.URL.Path,
		})
	})
}

func (g *Gateway) healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"state":  g.State().String(),
		})
	})
}
