package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"esign-backend/internal/bootstrap"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/shared/telemetry"
)

var (
	initOnce sync.Once
	adapter  *ginadapter.GinLambdaV2
	initErr  error
)

func initApp() {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	app, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	adapter = ginadapter.NewV2(app.Router)
	telemetry.Info("lambda.ready", map[string]any{"env": cfg.Env})
}

func unavailable(code string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Message: "Service unavailable", Code: code})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// handler lazily builds the app once per execution environment. A failed
// build is reported on every invocation until the environment is recycled.
func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda.bootstrap_failed", map[string]any{"error": initErr, "path": req.RawPath})
		return unavailable("bootstrap_failed"), nil
	}
	return adapter.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}
