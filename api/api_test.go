package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sailtactics/windfield-server/api/model"
	"github.com/sailtactics/windfield-server/estimator"
	"github.com/sailtactics/windfield-server/field"
	"github.com/sailtactics/windfield-server/latlon"
	"github.com/sailtactics/windfield-server/polar"
	"github.com/sailtactics/windfield-server/track"
	"github.com/sailtactics/windfield-server/xmpp"
)

func testRouter() http.Handler {
	polars := polar.NewTable()
	fusion := field.NewFusionSystem(field.Config{Seed: 1})
	return InitServer(false, polars, estimator.New(polars), fusion, &xmpp.Xmpp{})
}

func beat(n int) []track.Point {
	start := time.Date(2026, 7, 14, 13, 0, 0, 0, time.UTC)
	pos := latlon.LatLon{Lat: 35.6, Lon: 139.77}

	points := make([]track.Point, n)
	for i := 0; i < n; i++ {
		bearing := 45.0
		if (i/7)%2 == 1 {
			bearing = 315.0
		}
		points[i] = track.Point{
			Time:    start.Add(time.Duration(i) * 5 * time.Second),
			Latlon:  pos,
			Speed:   3.0,
			Bearing: bearing,
			BoatId:  "boat-1",
		}
		pos = latlon.Destination(pos, bearing, 15)
	}
	return points
}

func TestHealthz(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest("GET", "/windfield/-/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d; want 200", w.Code)
	}
	var res struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if res.Status != "Ok" {
		t.Errorf("healthz status = %q; want Ok", res.Status)
	}
}

func TestEstimateEndpoint(t *testing.T) {
	router := testRouter()

	body, _ := json.Marshal(model.EstimateRequest{
		BoatType: "default",
		Tracks: map[string][]track.Point{
			"boat-1": beat(105),
			"boat-2": beat(5), // too short, must be skipped not failed
		},
	})

	req := httptest.NewRequest("POST", "/windfield/api/v1/estimate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("estimate status = %d; want 200", w.Code)
	}

	var res model.EstimateResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode estimate response: %v", err)
	}
	if len(res.Estimates["boat-1"]) == 0 {
		t.Error("no estimates for the valid track")
	}
	if _, found := res.Estimates["boat-2"]; found {
		t.Error("estimates present for a 5-point track")
	}
}

func TestFieldNotFoundBeforeFusion(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest("GET", "/windfield/api/v1/field", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("field status before fusion = %d; want 404", w.Code)
	}
}

func TestFuseEndpoint(t *testing.T) {
	router := testRouter()

	body, _ := json.Marshal(model.EstimateRequest{
		BoatType: "default",
		Tracks:   map[string][]track.Point{"boat-1": beat(105)},
	})

	req := httptest.NewRequest("POST", "/windfield/api/v1/fuse", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("fuse status = %d; want 200 (body %s)", w.Code, w.Body.String())
	}

	var res model.FieldResponse
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode fuse response: %v", err)
	}
	if res.Field == nil {
		t.Fatal("fuse returned no field")
	}
	if rows, cols := len(res.Field.Lats), len(res.Field.Lats[0]); rows != 20 || cols != 20 {
		t.Errorf("fused grid %dx%d; want 20x20", rows, cols)
	}
}

func TestAddObservationAccepted(t *testing.T) {
	router := testRouter()

	o := field.Observation{
		Time:       time.Date(2026, 7, 14, 13, 0, 0, 0, time.UTC),
		Latlon:     latlon.LatLon{Lat: 35.6, Lon: 139.77},
		Direction:  180,
		SpeedMS:    5,
		Confidence: 0.8,
		BoatId:     "boat-1",
	}
	body, _ := json.Marshal(o)

	req := httptest.NewRequest("POST", "/windfield/api/v1/observations", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Errorf("first observation status = %d; want 202 (buffered)", w.Code)
	}
}
