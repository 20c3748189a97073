package mlhttp

import (
	"net/http"

	"github.com/urfu-lab/studyhub/core/predict"
)

func (s *server) features(w http.ResponseWriter, r *http.Request) {
	f, err := s.opts.Collector.Collect(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *server) topicNeeds(w http.ResponseWriter, r *http.Request) {
	f, err := s.opts.Collector.Collect(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, predict.PredictTopicNeeds(f, s.opts.Rand))
}
