package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	transports "github.com/otbe/factcast/internal/cmd/client/transports"
	"github.com/otbe/factcast/internal/fact"
)

// grpcAddrFromEnv returns the gRPC server address from FACTCAST_GRPC or a default.
func grpcAddrFromEnv() string {
	if addr := os.Getenv("FACTCAST_GRPC"); addr != "" {
		return addr
	}
	return "127.0.0.1:9090"
}

// dialGRPCContext creates a client for the factcast gRPC endpoint with
// insecure transport for local/dev. The connection is established lazily.
func dialGRPCContext(context.Context) (*grpc.ClientConn, error) {
	return grpc.NewClient(grpcAddrFromEnv(), grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func getTransport() transports.FactsTransport {
	// For now, only gRPC transport.
	return transports.NewGrpcTransport(dialGRPCContext)
}

// factJSON renders a fact for terminal output: the header plus one of
// payload_json, payload_text, or payload_b64.
func factJSON(f fact.Fact) map[string]any {
	out := map[string]any{
		"id":     f.ID.String(),
		"ns":     f.Namespace,
		"serial": f.Serial,
	}
	if f.Type != "" {
		out["type"] = f.Type
	}
	if len(f.AggIDs) > 0 {
		out["aggIds"] = f.AggIDs
	}
	if len(f.Meta) > 0 {
		out["meta"] = f.Meta
	}
	payload := f.Payload
	if len(payload) == 0 {
		return out
	}
	// Try JSON first if it looks like JSON
	if payload[0] == '{' || payload[0] == '[' {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			out["payload_json"] = v
			return out
		}
	}
	// Then UTF-8 text
	if utf8.Valid(payload) {
		out["payload_text"] = string(payload)
		return out
	}
	// Fallback to base64
	out["payload_b64"] = base64.StdEncoding.EncodeToString(payload)
	return out
}

// parsePairs turns repeated key=value flags into a map.
func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q; expected key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
