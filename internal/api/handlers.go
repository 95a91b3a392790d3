package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"snsnotify/internal/build"
	"snsnotify/internal/logging"
	"snsnotify/internal/settings"
	"snsnotify/internal/store"
)

const defaultBuildLimit = 25

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	if s.jobs != nil {
		if err := s.jobs.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleBuildEvent(phase build.Phase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, ok := readJSON[build.Event](w, r)
		if !ok {
			return
		}
		if ev.Phase != "" && !strings.EqualFold(string(ev.Phase), string(phase)) {
			writeError(w, http.StatusBadRequest, "event phase "+string(ev.Phase)+" does not match route")
			return
		}
		ev.Phase = phase

		sink := &lineSink{}
		outcome, err := s.events.Handle(r.Context(), ev, sink)
		if err != nil {
			if errors.Is(err, build.ErrInvalidEvent) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.internalError(w, err)
			return
		}
		if sink.lines == nil {
			sink.lines = []string{}
		}
		writeJSON(w, http.StatusOK, EventResponse{Outcome: outcome, Log: sink.lines})
	}
}

func (s *server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	if jobs == nil {
		jobs = []build.JobConfig{}
	}
	writeJSON(w, http.StatusOK, JobsResponse{Jobs: jobs})
}

func (s *server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "job"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobResponse{Job: job})
}

func (s *server) handlePutJob(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "job"))
	cfg, ok := readJSON[build.JobConfig](w, r)
	if !ok {
		return
	}
	if cfg.Job != "" && strings.TrimSpace(cfg.Job) != name {
		writeError(w, http.StatusBadRequest, "job name in body does not match path")
		return
	}
	cfg.Job = name
	if err := s.jobs.PutJob(r.Context(), cfg); err != nil {
		s.internalError(w, err)
		return
	}
	s.logger.Info("job notifier attached",
		logging.Job(name),
		logging.String(logging.FieldTopicARN, cfg.TopicARN),
	)
	writeJSON(w, http.StatusOK, JobResponse{Job: cfg})
}

func (s *server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")
	if err := s.jobs.DeleteJob(r.Context(), name); err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("job notifier detached", logging.Job(name))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	builds, err := s.jobs.ListBuilds(r.Context(), chi.URLParam(r, "job"), queryLimit(r, defaultBuildLimit))
	if err != nil {
		s.internalError(w, err)
		return
	}
	if builds == nil {
		builds = []build.Record{}
	}
	writeJSON(w, http.StatusOK, BuildsResponse{Builds: builds})
}

func (s *server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, FromSettings(s.settings.Snapshot()))
}

func (s *server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	patch, ok := readJSON[settings.Patch](w, r)
	if !ok {
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "no settings to update")
		return
	}
	updated, err := s.settings.Apply(patch)
	if err != nil {
		if errors.Is(err, settings.ErrNoConfigPath) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("global settings updated")
	writeJSON(w, http.StatusOK, FromSettings(updated))
}

func (s *server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.internalError(w, err)
}

func (s *server) internalError(w http.ResponseWriter, err error) {
	logging.ErrorWithContext(s.logger, "request failed", "api_request_failed", logging.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}
