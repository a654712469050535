package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ua-parser/uap-go/uaparser"
)

// maxSubscribers bounds the live SSE subscriber set (spec §3, §4.6): HTTP
// control is an operator interface, not a broadcast surface.
const maxSubscribers = 4

// sseEventBuffer is how many pending events a slow subscriber may queue
// before being dropped as dead (spec §4.6 "each subscriber ... is dropped
// from the set"); sized well above the event rate of control traffic.
const sseEventBuffer = 64

// HubState is the Hub's replica of externally visible receiver state,
// mutated only by the Hub task via StateEvents (spec §3).
type HubState struct {
	CtlFreq  Frequency
	Channels *ChannelParamsMap
}

// HubTask is a single-threaded event loop handling HTTP requests and
// broadcasting events to subscribers (spec §4.6). The design note in
// spec §9 about packing a raw fd into a poll token is satisfied
// idiomatically here: a `select` over Go channels *is* the
// readiness-multiplexer, so each HTTP connection already owns its stream
// via its request-handling goroutine and there is no fd/token to recover
// by hand (see DESIGN.md).
type HubTask struct {
	addr string

	state HubState

	register   chan subscribeRequest
	unregister chan *subscriber
	queries    chan ctlFreqQuery
	events     <-chan HubEvent
	recvCmd    chan<- RecvCommand

	ctlFreqRange *ctlFreqRange

	subs map[*subscriber]struct{}

	uaParser *uaparser.Parser

	log     *log.Logger
	metrics *Metrics
}

type ctlFreqRange struct {
	Min, Max Frequency
}

type subscriber struct {
	id uuid.UUID
	ch chan sseMessage
	ua string
}

type subscribeRequest struct {
	ua    string
	reply chan *subscriber // nil means rejected: subscriber set full
}

type ctlFreqQuery struct {
	reply chan Frequency
}

type sseMessage struct {
	event   string
	payload any
}

// NewHubTask builds a Hub bound to addr, fed by events and forwarding
// control commands onto recvCmd. ctlFreqRange may be nil (no validation,
// spec §9 Open Question default).
func NewHubTask(addr string, events <-chan HubEvent, recvCmd chan<- RecvCommand, ctlFreqRange *ctlFreqRange, logger *log.Logger, metrics *Metrics) *HubTask {
	parser := uaparser.NewFromSaved()

	return &HubTask{
		addr: addr,
		state: HubState{
			CtlFreq:  UnknownFrequency,
			Channels: NewChannelParamsMap(),
		},
		register:     make(chan subscribeRequest),
		unregister:   make(chan *subscriber),
		queries:      make(chan ctlFreqQuery),
		events:       events,
		recvCmd:      recvCmd,
		ctlFreqRange: ctlFreqRange,
		subs:         make(map[*subscriber]struct{}),
		uaParser:     parser,
		log:          logger,
		metrics:      metrics,
	}
}

// Run starts the HTTP server and blocks running the event loop. It never
// returns under normal operation (spec §5: "no graceful drain").
func (h *HubTask) Run() error {
	server := &http.Server{Addr: h.addr, Handler: h}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	h.loop(errCh)
	return nil
}

// loop owns HubState and the subscriber set exclusively; every other
// goroutine communicates with it only over register/unregister/queries/
// events (spec §5 "HubState is only mutated by the Hub").
func (h *HubTask) loop(serverErr <-chan error) {
	for {
		select {
		case err := <-serverErr:
			h.log.Fatalf("http server exited: %v", err)

		case req := <-h.register:
			if len(h.subs) >= maxSubscribers {
				req.reply <- nil
				continue
			}
			sub := &subscriber{id: uuid.New(), ch: make(chan sseMessage, sseEventBuffer), ua: req.ua}
			h.subs[sub] = struct{}{}
			h.metrics.hubSubscribers.Set(float64(len(h.subs)))
			h.log.Printf("subscriber %s connected (%s)", sub.id, sub.ua)
			req.reply <- sub

		case sub := <-h.unregister:
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
				h.metrics.hubSubscribers.Set(float64(len(h.subs)))
				h.log.Printf("subscriber %s disconnected", sub.id)
			}

		case q := <-h.queries:
			q.reply <- h.state.CtlFreq

		case e, ok := <-h.events:
			if !ok {
				return
			}
			h.apply(e)
		}
	}
}

// apply mutates HubState (if e is a StateEvent) and fans the resulting SSE
// messages out to every live subscriber (spec §4.6). A subscriber that
// can't keep up is dropped atomically: once a send to it fails, no
// further message in this batch is sent to it (spec §4.6, §7 "dropped
// from the set atomically — partial writes to one must not affect
// others").
func (h *HubTask) apply(e HubEvent) {
	msgs := h.toMessages(e)

	for sub := range h.subs {
	messages:
		for _, m := range msgs {
			select {
			case sub.ch <- m:
			default:
				// Subscriber can't keep up: treat like a write failure
				// and drop it, then stop sending this batch to it — its
				// ch is now closed and any further send would panic.
				delete(h.subs, sub)
				close(sub.ch)
				h.metrics.hubSubscribers.Set(float64(len(h.subs)))
				break messages
			}
		}
	}
}

// toMessages applies state mutation and returns zero or more SSE messages
// for event e, per the mapping table in spec §4.6.
func (h *HubTask) toMessages(e HubEvent) []sseMessage {
	switch e.Kind {
	case HubEventState:
		switch e.State.Kind {
		case StateUpdateCtlFreq:
			h.state.CtlFreq = e.State.Freq
			return []sseMessage{{event: "ctlFreq", payload: uint32(e.State.Freq)}}
		case StateUpdateChannelParams:
			h.state.Channels.Update(e.State.Ident, e.State.Params)
			return nil // not streamed (spec §4.6 table has no channel-params event)
		}
		return nil

	case HubEventCurFreq:
		return []sseMessage{{event: "curFreq", payload: uint32(e.CurFreq)}}

	case HubEventTalkGroup:
		return []sseMessage{{event: "talkGroup", payload: uint16(e.TalkGroup)}}

	case HubEventSigPower:
		return []sseMessage{{event: "sigPower", payload: e.SigPower}}

	case HubEventTrunkingControl:
		return h.tsbkMessages(e.Tsbk)

	case HubEventLinkControl:
		return h.lcMessages(e.Lc)
	}
	return nil
}

func (h *HubTask) tsbkMessages(tsbk TsbkFields) []sseMessage {
	switch tsbk.Opcode {
	case OpcodeRfssStatusBroadcast:
		return []sseMessage{{event: "rfssStatus", payload: rfssStatusPayload{
			Area: tsbk.Area, System: tsbk.System, RFSS: tsbk.RFSS, Site: tsbk.Site,
		}}}

	case OpcodeNetworkStatusBroadcast:
		return []sseMessage{{event: "networkStatus", payload: networkStatusPayload{
			Area: tsbk.Area, WACN: tsbk.WACN, System: tsbk.System,
		}}}

	case OpcodeAltControlChannel:
		return h.altControlMessages(tsbk.Area, tsbk.RFSS, tsbk.Site, tsbk.AltChannels)

	case OpcodeAdjacentSite:
		return h.adjacentSiteMessages(tsbk.Area, tsbk.RFSS, tsbk.System, tsbk.Site, tsbk.SiteChannel)

	case OpcodeLocRegResponse:
		return []sseMessage{{event: "locReg", payload: locRegPayload{
			Response: tsbk.RegResponse, RFSS: tsbk.RFSS, Site: tsbk.Site, Unit: tsbk.RegUnit,
		}}}

	case OpcodeUnitRegResponse:
		return []sseMessage{{event: "unitReg", payload: unitRegPayload{
			Response: tsbk.RegResponse, System: tsbk.System, UnitID: tsbk.RegUnit, UnitAddr: tsbk.RegUnitAddr,
		}}}

	case OpcodeUnitDeregAck:
		return []sseMessage{{event: "unitDereg", payload: unitDeregPayload{
			WACN: tsbk.WACN, System: tsbk.System, Unit: tsbk.RegUnit,
		}}}
	}
	return nil
}

func (h *HubTask) lcMessages(lc LinkControlFields) []sseMessage {
	switch lc.Opcode {
	case LcOpcodeGroupVoiceTraffic:
		return []sseMessage{{event: "srcUnit", payload: lc.SrcUnit}}

	case LcOpcodeRfssStatusBroadcast:
		return []sseMessage{{event: "rfssStatus", payload: rfssStatusPayload{
			Area: lc.Area, System: lc.System, RFSS: lc.RFSS, Site: lc.Site,
		}}}

	case LcOpcodeAltControlChannel:
		return h.altControlMessages(lc.Area, lc.RFSS, lc.Site, lc.AltChannels)

	case LcOpcodeAdjacentSite:
		return h.adjacentSiteMessages(lc.Area, lc.RFSS, lc.System, lc.Site, lc.SiteChannel)
	}
	return nil
}

// altControlMessages emits one altControl message per alt channel whose id
// resolves (spec §4.6 table, original hub.rs stream_alt_control).
func (h *HubTask) altControlMessages(_ uint8, rfss, site uint8, channels []ChannelIdentifier) []sseMessage {
	var out []sseMessage
	for _, ch := range channels {
		freq, ok := h.state.Channels.RxFreq(ch)
		if !ok {
			continue
		}
		out = append(out, sseMessage{event: "altControl", payload: altControlPayload{
			RFSS: rfss, Site: site, Freq: uint32(freq),
		}})
	}
	return out
}

// adjacentSiteMessages emits an adjacentSite message only if the site's
// channel id resolves to a known frequency (spec §4.6 table: "only if
// resolves"), mirroring altControlMessages.
func (h *HubTask) adjacentSiteMessages(area, rfss uint8, system uint16, site uint8, ch ChannelIdentifier) []sseMessage {
	freq, ok := h.state.Channels.RxFreq(ch)
	if !ok {
		return nil
	}
	return []sseMessage{{event: "adjacentSite", payload: adjacentSitePayload{
		Area: area, RFSS: rfss, System: system, Site: site, Freq: uint32(freq),
	}}}
}

// rfssStatusPayload etc. mirror the shapes named in spec §4.6 verbatim.
type rfssStatusPayload struct {
	Area   uint8  `json:"area"`
	System uint16 `json:"system"`
	RFSS   uint8  `json:"rfss"`
	Site   uint8  `json:"site"`
}

type networkStatusPayload struct {
	Area   uint8  `json:"area"`
	WACN   uint32 `json:"wacn"`
	System uint16 `json:"system"`
}

type altControlPayload struct {
	RFSS uint8  `json:"rfss"`
	Site uint8  `json:"site"`
	Freq uint32 `json:"freq"`
}

type adjacentSitePayload struct {
	Area   uint8  `json:"area"`
	RFSS   uint8  `json:"rfss"`
	System uint16 `json:"system"`
	Site   uint8  `json:"site"`
	Freq   uint32 `json:"freq"`
}

type locRegPayload struct {
	Response uint8  `json:"response"`
	RFSS     uint8  `json:"rfss"`
	Site     uint8  `json:"site"`
	Unit     uint32 `json:"unit"`
}

type unitRegPayload struct {
	Response uint8  `json:"response"`
	System   uint16 `json:"system"`
	UnitID   uint32 `json:"unitId"`
	UnitAddr uint32 `json:"unitAddr"`
}

type unitDeregPayload struct {
	WACN   uint32 `json:"wacn"`
	System uint16 `json:"system"`
	Unit   uint32 `json:"unit"`
}

// --- HTTP surface (spec §4.6, §6) ---

func (h *HubTask) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.ProtoMajor != 1 || r.ProtoMinor != 1 {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.URL.Path {
	case "/subscribe":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSubscribe(w, r)

	case "/ctlfreq":
		switch r.Method {
		case http.MethodGet:
			h.handleGetCtlFreq(w, r)
		case http.MethodPut:
			h.handlePutCtlFreq(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case "/metrics":
		promhttp.Handler().ServeHTTP(w, r)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *HubTask) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	ua := r.Header.Get("User-Agent")
	if h.uaParser != nil {
		client := h.uaParser.Parse(ua)
		if client.UserAgent.Family != "" {
			ua = fmt.Sprintf("%s %s on %s", client.UserAgent.Family, client.UserAgent.Major, client.Os.Family)
		}
	}

	reply := make(chan *subscriber, 1)
	h.register <- subscribeRequest{ua: ua, reply: reply}
	sub := <-reply
	if sub == nil {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.unregister <- sub
			return

		case msg, ok := <-sub.ch:
			if !ok {
				return
			}
			body, err := json.Marshal(sseEvent{Event: msg.event, Payload: msg.payload})
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
				h.unregister <- sub
				return
			}
			flusher.Flush()
		}
	}
}

type sseEvent struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type ctlFreqBody struct {
	CtlFreq uint32 `json:"ctlfreq"`
}

func (h *HubTask) handleGetCtlFreq(w http.ResponseWriter, r *http.Request) {
	reply := make(chan Frequency, 1)
	h.queries <- ctlFreqQuery{reply: reply}
	freq := <-reply

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ctlFreqBody{CtlFreq: uint32(freq)})
}

func (h *HubTask) handlePutCtlFreq(w http.ResponseWriter, r *http.Request) {
	var body ctlFreqBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	freq := Frequency(body.CtlFreq)

	if h.ctlFreqRange != nil && (freq < h.ctlFreqRange.Min || freq > h.ctlFreqRange.Max) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	select {
	case h.recvCmd <- RecvCommand{Kind: RecvSetControlFreq, Freq: freq}:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}
