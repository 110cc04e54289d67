package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"vidbox/src/player"
	"vidbox/src/util/eventsource"
)

// API contains the state that is accessible over the REST API.
type API struct {
	players player.List
}

func (api *API) player(r *http.Request) (*player.Player, error) {
	return api.players.PlayerByName(chi.URLParam(r, "playerName"))
}

func (api *API) playerList(w http.ResponseWriter, r *http.Request) {
	names, err := api.players.PlayerNames()
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"players": names,
	})
}

func (api *API) playerState(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	json.NewEncoder(w).Encode(pl.Snapshot())
}

func (api *API) playerSetCurrent(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		URI   string `json:"uri"`
		Title string `json:"title"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}
	if data.URI == "" {
		WriteError(w, r, fmt.Errorf("no uri specified"))
		return
	}

	if err := pl.Load(r.Context(), player.MediaSource{URI: data.URI, Title: data.Title}); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playlistContents(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	snap := pl.Snapshot()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"current":  snap.PlaylistIndex,
		"repeat":   snap.PlaylistRepeatMode,
		"shuffled": snap.IsShuffled,
		"sources":  snap.Playlist,
	})
}

func (api *API) playlistSet(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		Index   int                  `json:"index"`
		Sources []player.MediaSource `json:"sources"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := pl.LoadPlaylist(r.Context(), data.Sources, data.Index); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playlistNext(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := pl.Next(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playlistPrevious(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := pl.Previous(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playlistJump(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		Index int `json:"index"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := pl.JumpTo(r.Context(), data.Index); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playlistSetRepeat(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		Repeat string `json:"repeat"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := pl.SetRepeatMode(player.RepeatMode(data.Repeat)); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playlistSetShuffle(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		Shuffled bool `json:"shuffled"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	pl.SetShuffle(data.Shuffled)
	w.Write([]byte("{}"))
}

func (api *API) playerGetTime(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	snap := pl.Snapshot()
	json.NewEncoder(w).Encode(map[string]interface{}{
		"time":     int(snap.Position / time.Second),
		"buffered": int(snap.BufferedPosition / time.Second),
		"duration": int(snap.Duration / time.Second),
	})
}

func (api *API) playerSetTime(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		Time     int  `json:"time"`
		Relative bool `json:"relative"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	delta := time.Duration(data.Time) * time.Second
	switch {
	case !data.Relative:
		err = pl.SeekTo(r.Context(), delta)
	case delta >= 0:
		err = pl.SeekForward(r.Context(), delta)
	default:
		err = pl.SeekBackward(r.Context(), -delta)
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetPlaystate(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"playstate": pl.Snapshot().PlaybackState,
	})
}

func (api *API) playerSetPlaystate(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		State string `json:"playstate"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	switch data.State {
	case "playing":
		err = pl.Play(r.Context())
	case "paused":
		err = pl.Pause(r.Context())
	case "stopped":
		err = pl.Stop(r.Context())
	case "toggle":
		err = pl.TogglePlayPause(r.Context())
	default:
		err = fmt.Errorf("unknown playstate: %q", data.State)
	}
	if err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetVolume(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"volume": pl.Snapshot().Volume,
	})
}

func (api *API) playerSetVolume(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		Volume float64 `json:"volume"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := pl.SetVolume(r.Context(), data.Volume); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerGetSpeed(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"speed": pl.Snapshot().PlaybackSpeed,
	})
}

func (api *API) playerSetSpeed(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		Speed float64 `json:"speed"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := pl.SetPlaybackSpeed(r.Context(), data.Speed); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerSetLooping(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var data struct {
		Looping bool `json:"looping"`
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := pl.SetLooping(r.Context(), data.Looping); err != nil {
		WriteError(w, r, err)
		return
	}
	w.Write([]byte("{}"))
}

func (api *API) playerEvents(w http.ResponseWriter, r *http.Request) {
	pl, err := api.player(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	es, err := eventsource.Begin(w, r)
	if err != nil {
		log.Errorf("%v", err)
		return
	}
	listener := pl.Events().Listen(r.Context())

	es.EventJSON("snapshot", pl.Snapshot())
	for {
		var event interface{}
		select {
		case event = <-listener:
		case <-r.Context().Done():
			return
		}

		switch t := event.(type) {
		case player.SnapshotEvent:
			es.EventJSON("snapshot", t.Snapshot)
		case player.RecoveryFailedEvent:
			es.EventJSON("recoveryfailed", map[string]interface{}{
				"error": t.Err.Error(),
			})
		default:
			log.Debugf("Unmapped player event %#v", event)
		}
	}
}
