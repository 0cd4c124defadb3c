package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"nodeflow/internal/graph"
	"nodeflow/internal/upload"
)

const maxUploadBytes = 50 << 20

// NodeValueSetter is the graph access needed to attach an uploaded file.
type NodeValueSetter interface {
	Node(id string) (graph.Node, error)
	SetValue(id string, v graph.Value) error
}

// MediaHandler accepts a file upload and points a media node at the stored copy.
type MediaHandler struct {
	uploader upload.Uploader
	graph    NodeValueSetter
}

func NewMediaHandler(u upload.Uploader, g NodeValueSetter) *MediaHandler {
	return &MediaHandler{uploader: u, graph: g}
}

// HandleUpload serves POST /media/upload?node_id= with a multipart "file" field.
func (h *MediaHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.uploader == nil {
		http.Error(w, "uploads are not configured", http.StatusServiceUnavailable)
		return
	}
	nodeID := strings.TrimSpace(r.URL.Query().Get("node_id"))
	if nodeID == "" {
		http.Error(w, "node_id is required", http.StatusBadRequest)
		return
	}
	node, err := h.graph.Node(nodeID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if node.Kind != graph.KindImage && node.Kind != graph.KindVideo {
		http.Error(w, "node "+nodeID+" does not hold media", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	url, err := h.uploader.Upload(r.Context(), hdr.Filename, file)
	if err != nil {
		log.Printf("media upload for node %s failed: %v", nodeID, err)
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) {
			status = http.StatusRequestTimeout
		}
		http.Error(w, "upload failed: "+err.Error(), status)
		return
	}
	if err := h.graph.SetValue(nodeID, graph.Remote(url)); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"node_id": nodeID,
		"url":     url,
	})
}
