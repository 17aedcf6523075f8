package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin enforcement is left to the deployment's proxy layer.
		return true
	},
}

// WebSocketScanRequest represents a scan request via WebSocket. The image is
// carried base64-encoded through the standard JSON []byte encoding.
type WebSocketScanRequest struct {
	Type   string `json:"type"` // "image" or "text"
	Image  []byte `json:"image,omitempty"`
	Text   string `json:"text,omitempty"`
	Format string `json:"format,omitempty"`
	Lang   string `json:"lang,omitempty"`
}

// WebSocketScanResponse represents a scan response via WebSocket.
type WebSocketScanResponse struct {
	Type      string       `json:"type"`
	Status    string       `json:"status"` // "processing", "completed", "error"
	Progress  float64      `json:"progress,omitempty"`
	Result    *ScanPayload `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorType string       `json:"error_type,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// webSocketConnWriter is the subset of *websocket.Conn the send helpers
// need, for tests.
type webSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// scanWebSocketHandler handles WebSocket connections for interactive scans.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Ping to keep the connection alive while scans run.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage processes one scan request message.
func (s *Server) handleWebSocketMessage(conn *websocket.Conn, data []byte) {
	var req WebSocketScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      "scan_response",
		Status:    "processing",
		Progress:  0.0,
		RequestID: requestID,
	})

	switch req.Type {
	case "image":
		s.processWebSocketImage(conn, req, requestID)
	case "text":
		s.processWebSocketText(conn, req, requestID)
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// processWebSocketImage scans one image submission.
func (s *Server) processWebSocketImage(conn *websocket.Conn, req WebSocketScanRequest, requestID string) {
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No image data provided")
		return
	}

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      "scan_response",
		Status:    "processing",
		Progress:  0.5,
		RequestID: requestID,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImage(ctx, req.Image, req.Format, req.Lang)
	if err != nil {
		scanRequestsTotal.WithLabelValues("websocket_image", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Scan failed: %v", err))
		return
	}

	recordScan("websocket_image", len(res.Text), len(res.Ingredients.Tokens), time.Since(start).Seconds())

	payload := toScanPayload(res)
	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      "scan_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    &payload,
		RequestID: requestID,
	})
}

// processWebSocketText parses already-recognized text without the engine.
func (s *Server) processWebSocketText(conn *websocket.Conn, req WebSocketScanRequest, requestID string) {
	if req.Text == "" {
		s.sendWebSocketError(conn, "invalid_request", "No text provided")
		return
	}

	list := s.pipeline.Parse(req.Text)
	scanRequestsTotal.WithLabelValues("websocket_text", "success").Inc()
	ingredientsParsed.WithLabelValues("websocket_text").Observe(float64(len(list.Tokens)))

	payload := ScanPayload{Text: req.Text, Ingredients: make([]IngredientPayload, 0, len(list.Tokens))}
	for _, tok := range list.Tokens {
		ip := IngredientPayload{Unit: tok.Unit, Name: tok.Name, Raw: tok.Raw, Line: tok.Line}
		if tok.Quantity != nil {
			ip.Quantity = tok.QuantityString()
			if v, ok := tok.QuantityFloat(); ok {
				ip.Value = v
			}
		}
		payload.Ingredients = append(payload.Ingredients, ip)
	}

	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      "scan_response",
		Status:    "completed",
		Progress:  1.0,
		Result:    &payload,
		RequestID: requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn webSocketConnWriter, response WebSocketScanResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn webSocketConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, WebSocketScanResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
	})
}
