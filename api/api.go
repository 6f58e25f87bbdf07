package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"

	"github.com/sailtactics/windfield-server/api/model"
	"github.com/sailtactics/windfield-server/estimator"
	"github.com/sailtactics/windfield-server/field"
	"github.com/sailtactics/windfield-server/polar"
	"github.com/sailtactics/windfield-server/strategy"
	"github.com/sailtactics/windfield-server/xmpp"
)

// shiftAlertProbability is the probability above which a favorable
// wind shift is pushed to the xmpp recipient.
const shiftAlertProbability = 0.7

type server struct {
	cpuprofile bool
	polars     *polar.Table
	estimator  *estimator.Estimator
	fusion     *field.FusionSystem
	x          *xmpp.Xmpp
	upgrader   websocket.Upgrader
}

func InitServer(cpuprofile bool, polars *polar.Table, est *estimator.Estimator, fusion *field.FusionSystem, x *xmpp.Xmpp) *mux.Router {

	router := mux.NewRouter().StrictSlash(true)

	s := server{
		cpuprofile: cpuprofile,
		polars:     polars,
		estimator:  est,
		fusion:     fusion,
		x:          x,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router.HandleFunc("/windfield/-/healthz", s.healthz).Methods(http.MethodGet)

	apiV1 := router.PathPrefix("/windfield/api/v1").Subrouter()
	apiV1.HandleFunc("/estimate", s.estimate).Methods("POST")
	apiV1.HandleFunc("/observations", s.addObservation).Methods("POST")
	apiV1.HandleFunc("/fuse", s.fuse).Methods("POST")
	apiV1.HandleFunc("/field", s.currentField).Methods("GET")
	apiV1.HandleFunc("/field/{unix}", s.predictField).Methods("GET")
	apiV1.HandleFunc("/quality", s.quality).Methods("GET")
	apiV1.HandleFunc("/strategy", s.strategy).Methods("POST")
	apiV1.HandleFunc("/stream", s.stream).Methods("GET")

	return router
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status string `json:"status"`
	}

	json.NewEncoder(w).Encode(health{Status: "Ok"})
}

func (s *server) estimate(w http.ResponseWriter, req *http.Request) {
	requestLogger := s.requestLogger(req, "estimate")

	var r model.EstimateRequest
	if err := json.NewDecoder(req.Body).Decode(&r); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	start := time.Now()

	res := model.EstimateResponse{Estimates: map[string][]estimator.Estimate{}}
	for boatId, points := range r.Tracks {
		estimates := s.estimator.FromSingleBoat(points, r.BoatType)
		if estimates == nil {
			continue
		}
		res.Estimates[boatId] = estimates
	}

	requestLogger.Infof("Estimated %d/%d boats in %s", len(res.Estimates), len(r.Tracks), time.Now().Sub(start).String())

	json.NewEncoder(w).Encode(res)
}

func (s *server) addObservation(w http.ResponseWriter, req *http.Request) {
	var o field.Observation
	if err := json.NewDecoder(req.Body).Decode(&o); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f, err := s.fusion.AddObservation(req.Context(), o)
	if err != nil {
		if err == field.ErrInsufficientData {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, err.Error())
		return
	}
	if f == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	json.NewEncoder(w).Encode(s.fieldResponse(f))
}

func (s *server) fuse(w http.ResponseWriter, req *http.Request) {
	if s.cpuprofile {
		defer profile.Start().Stop()
	}
	requestLogger := s.requestLogger(req, "fuse")

	var r model.EstimateRequest
	if err := json.NewDecoder(req.Body).Decode(&r); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	start := time.Now()

	estimates := map[string][]estimator.Estimate{}
	for boatId, points := range r.Tracks {
		if es := s.estimator.FromSingleBoat(points, r.BoatType); es != nil {
			estimates[boatId] = es
		}
	}

	f, err := s.fusion.UpdateWithBoatData(req.Context(), estimates)
	if err != nil {
		requestLogger.WithError(err).Warn("fusion failed")
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprintln(w, err.Error())
		return
	}

	requestLogger.Infof("Fused %d boats in %s", len(estimates), time.Now().Sub(start).String())

	json.NewEncoder(w).Encode(s.fieldResponse(f))
}

func (s *server) currentField(w http.ResponseWriter, req *http.Request) {
	f := s.fusion.Current()
	if f == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(s.fieldResponse(f))
}

func (s *server) predictField(w http.ResponseWriter, req *http.Request) {
	unix, err := strconv.ParseInt(mux.Vars(req)["unix"], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	resolution := 0
	if v := req.URL.Query().Get("resolution"); v != "" {
		resolution, err = strconv.Atoi(v)
		if err != nil || resolution < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	}

	f, err := s.fusion.PredictField(req.Context(), time.Unix(unix, 0), resolution)
	if err != nil {
		if err == field.ErrNoField {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprintln(w, err.Error())
		return
	}

	json.NewEncoder(w).Encode(s.fieldResponse(f))
}

func (s *server) quality(w http.ResponseWriter, req *http.Request) {
	json.NewEncoder(w).Encode(s.fusion.Quality())
}

func (s *server) strategy(w http.ResponseWriter, req *http.Request) {
	if s.cpuprofile {
		defer profile.Start().Stop()
	}
	requestLogger := s.requestLogger(req, "strategy")

	var r model.StrategyRequest
	if err := json.NewDecoder(req.Body).Decode(&r); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if s.fusion.Current() == nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintln(w, "no wind field available yet")
		return
	}

	start := time.Now()

	d := strategy.NewDetectorWithPropagation(strategy.Config{}, s.polars, s.fusion)

	res := model.StrategyResponse{
		WindShifts: d.DetectWindShifts(&r.Course),
		Tacks:      d.DetectOptimalTacks(&r.Course),
		Laylines:   d.DetectLaylines(&r.Course),
	}

	requestLogger.Infof("Strategy found %d shifts, %d tacks, %d laylines in %s",
		len(res.WindShifts), len(res.Tacks), len(res.Laylines), time.Now().Sub(start).String())

	s.alertFavorableShifts(res.WindShifts)

	json.NewEncoder(w).Encode(res)
}

// alertFavorableShifts pushes high-probability favorable shifts to the
// xmpp recipient, in the background so the response is not delayed.
func (s *server) alertFavorableShifts(shifts []strategy.WindShiftPoint) {
	if s.x == nil || !s.x.Enabled() {
		return
	}
	for _, shift := range shifts {
		if !shift.Favorable || shift.Probability < shiftAlertProbability {
			continue
		}
		message := fmt.Sprintf("%s at %s (%.0f%%)", shift.Description, shift.Time.Format("15:04"), shift.Probability*100)
		go func() {
			if err := s.x.Send(message); err != nil {
				log.WithError(err).Warn("xmpp alert failed")
			}
		}()
	}
}

// streamInterval is the period between field pushes on the websocket.
const streamInterval = 5 * time.Second

// stream upgrades to a websocket and pushes the latest field whenever
// a new fusion lands.
func (s *server) stream(w http.ResponseWriter, req *http.Request) {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	requestLogger := s.requestLogger(req, "stream")
	requestLogger.Info("Field stream opened")

	// drain the connection so client close is noticed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var lastSent time.Time
	for {
		select {
		case <-done:
			requestLogger.Info("Field stream closed")
			return
		case <-ticker.C:
			f := s.fusion.Current()
			if f == nil || !f.Time.After(lastSent) {
				continue
			}
			if err := conn.WriteJSON(s.fieldResponse(f)); err != nil {
				requestLogger.WithError(err).Info("Field stream closed")
				return
			}
			lastSent = f.Time
		}
	}
}

func (s *server) fieldResponse(f *field.Field) model.FieldResponse {
	return model.FieldResponse{
		Field:       f,
		Propagation: s.fusion.Propagation(),
		Quality:     s.fusion.Quality(),
	}
}

func (s *server) requestLogger(req *http.Request, action string) *log.Entry {
	fields := log.Fields{
		"action": action,
	}
	if ip, err := getIp(req); err == nil {
		fields["IP"] = ip
	}
	return log.WithFields(fields)
}

func getIp(r *http.Request) (string, error) {
	//Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip, nil
	}

	//Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	splitIps := strings.Split(ips, ",")
	for _, ip := range splitIps {
		netIP := net.ParseIP(ip)
		if netIP != nil {
			return ip, nil
		}
	}

	//Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "", err
	}
	netIP = net.ParseIP(ip)
	if netIP != nil {
		return ip, nil
	}
	return "", fmt.Errorf("No valid ip found")
}
