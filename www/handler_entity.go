package www

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/icodeforyou/spotpilot-go/entity"
)

var errUnknownEntity = errors.New("unknown entity")

type EntityView struct {
	ID         string            `json:"entity_id"`
	State      *string           `json:"state"`
	Attributes entity.Attributes `json:"attributes"`
}

func readEntity(ctx context.Context, b Backend, id string) (EntityView, error) {
	state, err := b.State(ctx, id)
	if err != nil {
		return EntityView{}, err
	}
	attrs, err := b.Attributes(ctx, id)
	if err != nil {
		return EntityView{}, err
	}
	v := EntityView{ID: id, Attributes: attrs}
	if s, ok := state.Get(); ok {
		v.State = &s
	}
	return v, nil
}

func NewEntityListHandler(logger *slog.Logger, b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := b.EntityIDs(r.Context())
		if err != nil {
			logger.Error("listing entities", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}
		views := make([]EntityView, 0, len(ids))
		for _, id := range ids {
			v, err := readEntity(r.Context(), b, id)
			if err != nil {
				logger.Error("reading entity", slog.String("entity", id), slog.Any("error", err))
				writeError(logger, w, http.StatusInternalServerError, err)
				return
			}
			views = append(views, v)
		}
		writeJSON(logger, w, http.StatusOK, views)
	}
}

func NewEntityHandler(logger *slog.Logger, b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		ids, err := b.EntityIDs(r.Context())
		if err != nil {
			logger.Error("listing entities", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}
		if !slices.Contains(ids, id) {
			writeError(logger, w, http.StatusNotFound, errUnknownEntity)
			return
		}
		v, err := readEntity(r.Context(), b, id)
		if err != nil {
			logger.Error("reading entity", slog.String("entity", id), slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(logger, w, http.StatusOK, v)
	}
}
