package httpapi

import (
	"io"
	"net/http"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/prepa3/turnstile/internal/turnstile/types"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads.  A report with a long reason is well under 2 KiB.
const maxRequestBody = 16 << 10

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload.  Gate readers send "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/x-protobuf" ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// readProto reads the request body and unmarshals it into msg.
func readProto(r *http.Request, msg proto.Message) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return proto.Unmarshal(body, msg)
}

// readStruct decodes a google.protobuf.Struct body.
func readStruct(r *http.Request) (*structpb.Struct, error) {
	msg := &structpb.Struct{}
	if err := readProto(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// ── Access ───────────────────────────────────────────────────────────────────

// accessRequestFromStruct reads {"exit": bool}.  A missing or non-bool
// exit leaves Exit nil so validation rejects it.
func accessRequestFromStruct(p *structpb.Struct) types.AccessRequest {
	var req types.AccessRequest
	if v, ok := p.GetFields()["exit"]; ok {
		if b, isBool := v.GetKind().(*structpb.Value_BoolValue); isBool {
			exit := b.BoolValue
			req.Exit = &exit
		}
	}
	return req
}

func accessResponseToStruct(r types.AccessResponse) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":          r.ID,
		"name":        r.Name,
		"at":          float64(r.At),
		"exit":        r.Exit,
		"accepted":    r.Accepted,
		"suspended":   r.Suspended,
		"reason":      r.Reason,
		"server_time": r.ServerTime,
	})
}
