// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/ManuGH/saytube/internal/apperr"
	"github.com/ManuGH/saytube/internal/audiobuf"
	xglog "github.com/ManuGH/saytube/internal/log"
)

type recordResponse struct {
	Message string `json:"message"`
}

type transcribeResponse struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// handleRecord stores the multipart "audio" field as the live buffer.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Audio upload too large")
			return
		}
		s.writeError(w, r, apperr.Wrap(apperr.KindInputMissing, "record", "No audio file provided", err))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindIOFailure, "record", "Failed to read uploaded audio", err))
		return
	}
	if len(data) == 0 {
		s.writeError(w, r, apperr.New(apperr.KindInputMissing, "record", "Uploaded audio is empty"))
		return
	}

	p := audiobuf.NewPayload(data, s.now())
	s.audio.Put(p)

	logger := xglog.WithContext(r.Context(), s.logger)

	logger.Info().
		Str(xglog.FieldEvent, "audio.stored").
		Int(xglog.FieldBytes, len(data)).
		Int("sample_rate", p.SampleRate).
		Int("channels", p.Channels).
		Msg("audio buffer replaced")
	writeJSON(w, http.StatusOK, recordResponse{Message: "Audio uploaded successfully."})
}

// handleTranscribe runs the gateway over the last stored buffer.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	p, err := s.audio.Take()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.transcriber.Transcribe(r.Context(), p.Data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Language: res.Language, Text: res.Text})
}
