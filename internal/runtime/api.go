package runtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"
)

type channelView struct {
	Name      string    `json:"name"`
	Preset    string    `json:"preset,omitempty"`
	Connected bool      `json:"connected"`
	Streaming bool      `json:"streaming"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

type utteranceView struct {
	SessionID    string    `json:"session_id"`
	Text         string    `json:"text"`
	SpokenText   string    `json:"spoken_text"`
	WordCount    int       `json:"word_count"`
	PlaybackTime float64   `json:"playback_time"`
	Interrupted  bool      `json:"interrupted"`
	CreatedAt    time.Time `json:"created_at"`
}

// handleChannels merges stored channel configuration with live display
// state. Channels seen on the bus but not configured still appear,
// unconfigured.
func (r *Runtime) handleChannels(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	views := make(map[string]*channelView)
	if r.deps.Channels != nil {
		stored, err := r.deps.Channels.ListChannels(req.Context())
		if err != nil {
			r.logger.Error("channel list failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		for _, c := range stored {
			views[c.Name] = &channelView{Name: c.Name, Preset: c.Preset, CreatedAt: c.CreatedAt}
		}
	}
	if r.deps.Status != nil {
		for _, st := range r.deps.Status.Status() {
			v, ok := views[st.Name]
			if !ok {
				v = &channelView{Name: st.Name}
				views[st.Name] = v
			}
			v.Connected = st.Connected
			v.Streaming = st.Streaming
		}
	}

	out := make([]channelView, 0, len(views))
	for _, v := range views {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, out)
}

func (r *Runtime) handleUtterances(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.deps.Channels == nil {
		writeJSON(w, []utteranceView{})
		return
	}

	channel := req.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel query parameter required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	utterances, err := r.deps.Channels.ListUtterances(req.Context(), channel, limit)
	if err != nil {
		r.logger.Error("utterance list failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	out := make([]utteranceView, 0, len(utterances))
	for _, u := range utterances {
		out = append(out, utteranceView{
			SessionID:    u.SessionID,
			Text:         u.Text,
			SpokenText:   u.SpokenText,
			WordCount:    u.WordCount,
			PlaybackTime: u.PlaybackTime,
			Interrupted:  u.Interrupted,
			CreatedAt:    u.CreatedAt,
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
