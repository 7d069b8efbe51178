package server

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/fluidity/internal/model"
	"github.com/crimson-sun/fluidity/internal/publish"
)

const maxIngestBody = 4 << 20

// handleHistory returns the hub history, oldest first. ?limit=n keeps the
// newest n packets.
func (s *Server) handleHistory(c *gin.Context) {
	history := s.hub.History()
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if n < len(history) {
			history = history[len(history)-n:]
		}
	}
	if history == nil {
		history = []model.Packet{}
	}
	c.JSON(http.StatusOK, history)
}

// handleIngest accepts a packet or an array of packets from a remote
// publisher. Each is re-sequenced locally and delivered to the hub.
func (s *Server) handleIngest(c *gin.Context) {
	if s.ingest == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "ingestion disabled"})
		return
	}
	if s.ingestKey != "" && !bearerMatches(c.GetHeader("Authorization"), s.ingestKey) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid key"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIngestBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(body) > maxIngestBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}
	packets, err := decodePackets(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for i, p := range packets {
		if p.Site == "" || p.CollectorID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "packet " + strconv.Itoa(i) + ": site and collectorId are required"})
			return
		}
	}

	seqs := make([]uint64, 0, len(packets))
	for _, p := range packets {
		out, err := s.ingest.Publish(c.Request.Context(), publish.Draft{Packet: p, KeepRaw: p.RawPayload != nil}, nil)
		if err != nil {
			s.log.Warn("ingest publish failed", "site", p.Site, "collector", p.CollectorID, "error", err)
		}
		seqs = append(seqs, out.Sequence)
	}
	s.log.Debug("packets ingested", "count", len(seqs))
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(seqs), "sequences": seqs})
}

func bearerMatches(header, key string) bool {
	return subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+key)) == 1
}

func decodePackets(body []byte) ([]model.Packet, error) {
	trimmed := bytes.TrimSpace(body)
	if strings.HasPrefix(string(trimmed), "[") {
		var ps []model.Packet
		if err := json.Unmarshal(trimmed, &ps); err != nil {
			return nil, err
		}
		return ps, nil
	}
	var p model.Packet
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, err
	}
	return []model.Packet{p}, nil
}
