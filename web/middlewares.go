package web

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/op/go-logging"
	"github.com/rcrowley/go-metrics"
)

// Logger is a middleware handler that logs the request as it goes in and the response as it goes out.
type Logger struct {
	Logger *logging.Logger
}

func NewLogger() *Logger {
	return &Logger{
		Logger: logging.MustGetLogger("kvconsole.requests"),
	}
}

func (l *Logger) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	l.Logger.Debugf("Started %s %s", r.Method, r.URL.Path)

	next(rw, r)

	status := http.StatusOK
	if res, ok := rw.(negroni.ResponseWriter); ok && res.Status() != 0 {
		status = res.Status()
	}
	l.Logger.Infof("Completed %s %s %v %s in %v", r.Method, r.URL.Path, status, http.StatusText(status), time.Since(start))
}

// Timing records a timer per method and top level path segment, so keys
// in the URL do not create a timer each.
type Timing struct {
	registry metrics.Registry
}

func NewTiming(registry metrics.Registry) *Timing {
	return &Timing{registry: registry}
}

func (t *Timing) ServeHTTP(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	if strings.HasPrefix(r.URL.Path, "/audit/metrics") {
		next(rw, r)
		return
	}

	timer := metrics.GetOrRegisterTimer(timerName(r), t.registry)
	timer.Time(func() {
		next(rw, r)
	})
}

func timerName(r *http.Request) string {
	segment := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)[0]
	return "web." + r.Method + "./" + segment
}

func (s *Server) MetricsHandler(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]map[string]interface{})
	s.registry.Each(func(name string, i interface{}) {
		values := make(map[string]interface{})
		switch metric := i.(type) {
		case metrics.Counter:
			values["count"] = metric.Count()
		case metrics.Gauge:
			values["value"] = metric.Value()
		case metrics.GaugeFloat64:
			values["value"] = metric.Value()
		case metrics.Meter:
			m := metric.Snapshot()
			values["count"] = m.Count()
			values["m1"] = m.Rate1()
			values["m5"] = m.Rate5()
			values["m15"] = m.Rate15()
			values["mean"] = m.RateMean()
		case metrics.Timer:
			t := metric.Snapshot()
			ps := t.Percentiles([]float64{0.5, 0.75, 0.95, 0.99})
			values["count"] = t.Count()
			values["duration"] = map[string]interface{}{
				"unit":   "nanoseconds",
				"min":    t.Min(),
				"max":    t.Max(),
				"mean":   t.Mean(),
				"median": ps[0],
				"p75":    ps[1],
				"p95":    ps[2],
				"p99":    ps[3],
			}
			values["rate"] = map[string]interface{}{
				"m1":   t.Rate1(),
				"m5":   t.Rate5(),
				"m15":  t.Rate15(),
				"mean": t.RateMean(),
			}
		}
		data[name] = values
	})

	rw.Header().Set("Content-Type", "application/json;charset=utf-8")
	json.NewEncoder(rw).Encode(data)
}
