package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/dwnilii/novao/cmd/novaoapi/internal/db/models"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/repository"
	"github.com/dwnilii/novao/cmd/novaoapi/internal/settings"
)

// SettingRequest is the body of PUT /admin/settings/{key}.
type SettingRequest struct {
	Value string `json:"value"`
}

// HandleListSettings returns every setting.
func HandleListSettings(repo repository.SettingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := repo.List(r.Context())
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("list settings")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		if list == nil {
			list = []models.Setting{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// HandleGetSetting returns one setting.
func HandleGetSetting(repo repository.SettingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setting, err := repo.Get(r.Context(), chi.URLParam(r, "key"))
		if err != nil {
			if errors.Is(err, repository.ErrSettingNotFound) {
				writeMessage(w, http.StatusNotFound, msgSettingNotFound)
				return
			}
			hlog.FromRequest(r).Error().Err(err).Msg("get setting")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		writeJSON(w, http.StatusOK, setting)
	}
}

// HandlePutSetting upserts one setting. The panel URL goes through the
// panel accessor so it is normalised the same way the bridge stores it.
func HandlePutSetting(repo repository.SettingRepository, panel panelSettings) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		var req SettingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, msgInvalidBody)
			return
		}

		var err error
		if key == models.SettingPanelURL {
			err = panel.SetPanelURL(r.Context(), req.Value)
			if errors.Is(err, settings.ErrPanelURLNotConfigured) {
				writeMessage(w, http.StatusBadRequest, "Panel URL must not be empty.")
				return
			}
		} else {
			err = repo.Set(r.Context(), key, req.Value)
		}
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("put setting")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}

		setting, err := repo.Get(r.Context(), key)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("key", key).Msg("reload setting")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		writeJSON(w, http.StatusOK, setting)
	}
}

// HandleDeleteSetting removes one setting.
func HandleDeleteSetting(repo repository.SettingRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := repo.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
			if errors.Is(err, repository.ErrSettingNotFound) {
				writeMessage(w, http.StatusNotFound, msgSettingNotFound)
				return
			}
			hlog.FromRequest(r).Error().Err(err).Msg("delete setting")
			writeMessage(w, http.StatusInternalServerError, msgInternal)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
