package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/api/backup/v1/backupv1connect"
	"github.com/eslsoft/deeplisten/internal/infrastructure/config"
)

// Logger logs one line per unary call.
func Logger(logger logrus.FieldLogger) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			duration := time.Since(start)
			code := connect.CodeOf(err)
			entry := logger.WithFields(buildLogFields(req, resp, duration))
			if err != nil {
				entry = entry.WithError(err).WithField("status", code.String())
			}
			entry.Log(determineLogLevel(code, err), "request completed")

			return resp, err
		}
	}
}

func determineLogLevel(code connect.Code, err error) logrus.Level {
	if err == nil {
		return logrus.InfoLevel
	}
	switch code {
	case connect.CodeInvalidArgument, connect.CodeFailedPrecondition, connect.CodeNotFound,
		connect.CodeAlreadyExists, connect.CodePermissionDenied, connect.CodeUnauthenticated:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}

func buildLogFields(req connect.AnyRequest, resp connect.AnyResponse, duration time.Duration) logrus.Fields {
	fields := logrus.Fields{
		"procedure": req.Spec().Procedure,
		"status":    "ok",
		"duration":  duration.String(),
	}

	setField(fields, "http_method", req.HTTPMethod())
	peer := req.Peer()
	setField(fields, "peer_addr", peer.Addr)
	setField(fields, "protocol", peer.Protocol)

	header := req.Header()
	setField(fields, "user_id", header.Get(backupv1connect.UserIDHeader))
	setField(fields, "user_agent", header.Get("User-Agent"))
	setField(fields, "request_id", header.Get("X-Request-Id"))
	setField(fields, "client_ip", clientIP(header))
	if cl := contentLength(header); cl >= 0 {
		fields["request_bytes"] = cl
	}
	if resp != nil {
		if cl := contentLength(resp.Header()); cl >= 0 {
			fields["response_bytes"] = cl
		}
	}
	return fields
}

func setField(fields logrus.Fields, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

// clientIP prefers the first non-empty X-Forwarded-For hop, then X-Real-Ip.
func clientIP(header http.Header) string {
	for _, part := range strings.Split(header.Get("X-Forwarded-For"), ",") {
		if candidate := strings.TrimSpace(part); candidate != "" {
			return candidate
		}
	}
	return strings.TrimSpace(header.Get("X-Real-Ip"))
}

func contentLength(header http.Header) int64 {
	if header == nil {
		return -1
	}
	n, err := strconv.ParseInt(header.Get("Content-Length"), 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// NewLogger builds a configured logrus logger from application config.
func NewLogger(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)
	if cfg.Log.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
