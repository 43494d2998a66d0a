package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bryanchriswhite/WindowAccordion/internal/registry"
	"github.com/gorilla/mux"
)

func (s *Server) handleGetProfiles(w http.ResponseWriter, r *http.Request) {
	if enabled, _ := strconv.ParseBool(r.URL.Query().Get("enabled")); enabled {
		s.writeJSON(w, http.StatusOK, s.registry.EnabledProfiles())
		return
	}
	s.writeJSON(w, http.StatusOK, s.registry.Profiles())
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	bundle := mux.Vars(r)["bundle"]
	p, ok := s.registry.Profile(bundle)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("%w: %s", registry.ErrProfileNotFound, bundle))
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// handlePutProfile creates (POST /profiles) or replaces (PUT /profiles/{bundle})
// a profile
func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p registry.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var err error
	if bundle, ok := mux.Vars(r)["bundle"]; ok {
		if p.BundleIdentifier == "" {
			p.BundleIdentifier = bundle
		}
		if p.BundleIdentifier != bundle {
			s.writeError(w, http.StatusBadRequest,
				fmt.Errorf("bundle identifier %q does not match path %q", p.BundleIdentifier, bundle))
			return
		}
		err = s.registry.UpdateProfile(p)
	} else {
		err = s.registry.AddProfile(p)
	}
	if err != nil {
		s.writeError(w, registryErrorCode(err), err)
		return
	}

	stored, _ := s.registry.Profile(p.BundleIdentifier)
	s.writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.RemoveProfile(mux.Vars(r)["bundle"]); err != nil {
		s.writeError(w, registryErrorCode(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "success"})
}

func (s *Server) handleEnablement(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	bundle := vars["bundle"]

	var err error
	switch vars["op"] {
	case "enable":
		err = s.registry.Enable(bundle)
	case "disable":
		err = s.registry.Disable(bundle)
	case "toggle":
		_, err = s.registry.Toggle(bundle)
	}
	if err != nil {
		s.writeError(w, registryErrorCode(err), err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"bundle_identifier": bundle,
		"enabled":           s.registry.IsApplicationEnabled(bundle),
	})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if err := s.refreshIfAsked(r); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, fmt.Errorf("refresh failed: %w", err))
		return
	}
	added, err := s.registry.Discover(s.windows.Applications())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if added == nil {
		added = []registry.Profile{}
	}
	s.writeJSON(w, http.StatusOK, added)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.ResetToDefaults(); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.registry.Profiles())
}
