package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"vidbox/src/player"
)

// InitRouter attaches all API routes to the specified router.
func InitRouter(r chi.Router, players player.List) {
	api := API{players: players}
	r.Get("/players", api.playerList)
	r.Route("/player/{playerName}", func(r chi.Router) {
		r.Use(jsonCtx)
		r.Get("/", api.playerState)
		r.Post("/current", api.playerSetCurrent)
		r.Route("/playlist", func(r chi.Router) {
			r.Get("/", api.playlistContents)
			r.Put("/", api.playlistSet)
			r.Post("/next", api.playlistNext)
			r.Post("/previous", api.playlistPrevious)
			r.Post("/jump", api.playlistJump)
			r.Post("/repeat", api.playlistSetRepeat)
			r.Post("/shuffle", api.playlistSetShuffle)
		})
		r.Get("/time", api.playerGetTime)
		r.Post("/time", api.playerSetTime)
		r.Get("/playstate", api.playerGetPlaystate)
		r.Post("/playstate", api.playerSetPlaystate)
		r.Get("/volume", api.playerGetVolume)
		r.Post("/volume", api.playerSetVolume)
		r.Get("/speed", api.playerGetSpeed)
		r.Post("/speed", api.playerSetSpeed)
		r.Post("/looping", api.playerSetLooping)
		r.Get("/events", api.playerEvents)
	})
}

// WriteError writes an error to the client or an empty object if err is nil.
//
// An attempt is made to tune the response format to the requestor.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	log.Errorf("Error serving %s: %v", r.RemoteAddr, err)
	if errors.Is(err, player.ErrPlayerNotFound) {
		w.WriteHeader(http.StatusNotFound)
	} else {
		w.WriteHeader(http.StatusBadRequest)
	}

	if r.Header.Get("X-Requested-With") == "" {
		w.Write([]byte(err.Error()))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
	})
}

func jsonCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
