package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	LessonCompletions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_lesson_completion_attempts_total",
			Help: "Lesson completion attempts by outcome",
		},
		[]string{"outcome"}, // completed | blocked | already_completed
	)

	ModuleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_module_transitions_total",
			Help: "Module status transitions",
		},
		[]string{"status"},
	)

	Suspensions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lms_suspensions_total",
			Help: "Suspensions created after exhausting module attempts",
		},
	)

	AppealDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_appeal_decisions_total",
			Help: "Reviewed suspension appeals",
		},
		[]string{"decision"},
	)

	LessonScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lms_lesson_score",
			Help:    "Distribution of calculated lesson scores",
			Buckets: []float64{20, 40, 60, 65, 70, 80, 90, 100},
		},
	)
)

var initOnce sync.Once

// Init 注册指标，可重复调用
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter)
		prometheus.MustRegister(RequestDuration)
		prometheus.MustRegister(LessonCompletions)
		prometheus.MustRegister(ModuleTransitions)
		prometheus.MustRegister(Suspensions)
		prometheus.MustRegister(AppealDecisions)
		prometheus.MustRegister(LessonScores)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
