package shared

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ServiceMetrics tracks success rates and latency per operation
type ServiceMetrics struct {
	serviceName         string
	totalRequests       int64
	successfulRequests  int64
	failedRequests      int64
	totalProcessingTime time.Duration
	operationCounts     map[string]int64
	performance         *PerformanceMetrics
	lastUpdated         time.Time
	mutex               sync.RWMutex
}

// ServiceMetricsSnapshot is a point-in-time copy of ServiceMetrics
type ServiceMetricsSnapshot struct {
	ServiceName           string              `json:"service_name"`
	TotalRequests         int64               `json:"total_requests"`
	SuccessfulRequests    int64               `json:"successful_requests"`
	FailedRequests        int64               `json:"failed_requests"`
	AverageProcessingTime time.Duration       `json:"average_processing_time"`
	OperationCounts       map[string]int64    `json:"operation_counts"`
	Performance           PerformanceSnapshot `json:"performance"`
	LastUpdated           time.Time           `json:"last_updated"`
}

// NewServiceMetrics creates a new metrics tracker for a service
func NewServiceMetrics(serviceName string) *ServiceMetrics {
	return &ServiceMetrics{
		serviceName:     serviceName,
		operationCounts: make(map[string]int64),
		performance:     NewPerformanceMetrics(),
		lastUpdated:     time.Now(),
	}
}

// RecordRequest records an operation with its success status and processing time
func (m *ServiceMetrics) RecordRequest(operation string, success bool, processingTime time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalRequests++
	m.totalProcessingTime += processingTime
	m.operationCounts[operation]++

	if success {
		m.successfulRequests++
	} else {
		m.failedRequests++
	}

	m.lastUpdated = time.Now()
	m.performance.RecordProcessingTime(processingTime)
}

// GetSuccessRate returns the success rate as a percentage
func (m *ServiceMetrics) GetSuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.totalRequests == 0 {
		return 0.0
	}

	return float64(m.successfulRequests) / float64(m.totalRequests) * 100.0
}

// GetSnapshot returns a thread-safe snapshot of current metrics
func (m *ServiceMetrics) GetSnapshot() ServiceMetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	counts := make(map[string]int64, len(m.operationCounts))
	for operation, count := range m.operationCounts {
		counts[operation] = count
	}

	var average time.Duration
	if m.totalRequests > 0 {
		average = time.Duration(int64(m.totalProcessingTime) / m.totalRequests)
	}

	return ServiceMetricsSnapshot{
		ServiceName:           m.serviceName,
		TotalRequests:         m.totalRequests,
		SuccessfulRequests:    m.successfulRequests,
		FailedRequests:        m.failedRequests,
		AverageProcessingTime: average,
		OperationCounts:       counts,
		Performance:           m.performance.GetPerformanceSnapshot(),
		LastUpdated:           m.lastUpdated,
	}
}

// LogSummary logs a metrics summary
func (m *ServiceMetrics) LogSummary() {
	snapshot := m.GetSnapshot()

	logrus.WithFields(logrus.Fields{
		"service_name":            snapshot.ServiceName,
		"total_requests":          snapshot.TotalRequests,
		"successful_requests":     snapshot.SuccessfulRequests,
		"failed_requests":         snapshot.FailedRequests,
		"success_rate":            m.GetSuccessRate(),
		"average_processing_time": snapshot.AverageProcessingTime,
		"min_processing_time":     snapshot.Performance.MinProcessingTime,
		"max_processing_time":     snapshot.Performance.MaxProcessingTime,
		"p95_processing_time":     snapshot.Performance.P95ProcessingTime,
		"operation_counts":        snapshot.OperationCounts,
	}).Info("Service metrics summary")
}

// Reset resets all metrics to zero
func (m *ServiceMetrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalRequests = 0
	m.successfulRequests = 0
	m.failedRequests = 0
	m.totalProcessingTime = 0
	m.operationCounts = make(map[string]int64)
	m.performance = NewPerformanceMetrics()
	m.lastUpdated = time.Now()

	logrus.WithField("service_name", m.serviceName).Debug("Service metrics reset")
}

// HTTPMetrics tracks status codes and error categories of API calls
type HTTPMetrics struct {
	totalRequests    int64
	failedRequests   int64
	statusCodeCounts map[int]int64
	errorCounts      map[string]int64
	mutex            sync.RWMutex
}

// NewHTTPMetrics creates a new HTTP metrics tracker
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		statusCodeCounts: make(map[int]int64),
		errorCounts:      make(map[string]int64),
	}
}

// RecordHTTPRequest records an HTTP request with its result. statusCode is
// zero when no response arrived.
func (hm *HTTPMetrics) RecordHTTPRequest(statusCode int, errorType string) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.totalRequests++
	if statusCode != 0 {
		hm.statusCodeCounts[statusCode]++
	}
	if errorType != "" {
		hm.failedRequests++
		hm.errorCounts[errorType]++
	}
}

// StatusCount returns how many responses had the given status
func (hm *HTTPMetrics) StatusCount(statusCode int) int64 {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()
	return hm.statusCodeCounts[statusCode]
}

// ErrorCount returns how many requests failed with the given error type
func (hm *HTTPMetrics) ErrorCount(errorType string) int64 {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()
	return hm.errorCounts[errorType]
}

// LogHTTPSummary logs HTTP metrics
func (hm *HTTPMetrics) LogHTTPSummary() {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	logrus.WithFields(logrus.Fields{
		"total_requests":     hm.totalRequests,
		"failed_requests":    hm.failedRequests,
		"status_code_counts": hm.statusCodeCounts,
		"error_counts":       hm.errorCounts,
	}).Info("HTTP metrics summary")
}

// PerformanceMetrics tracks latency distribution over the last 1000 samples
type PerformanceMetrics struct {
	minProcessingTime time.Duration
	maxProcessingTime time.Duration
	processingTimes   []time.Duration
	mutex             sync.RWMutex
}

// PerformanceSnapshot is a point-in-time copy of PerformanceMetrics
type PerformanceSnapshot struct {
	MinProcessingTime time.Duration `json:"min_processing_time"`
	MaxProcessingTime time.Duration `json:"max_processing_time"`
	P95ProcessingTime time.Duration `json:"p95_processing_time"`
	P99ProcessingTime time.Duration `json:"p99_processing_time"`
	Samples           int           `json:"samples"`
}

// NewPerformanceMetrics creates a new performance metrics tracker
func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		processingTimes: make([]time.Duration, 0, 1000),
	}
}

// RecordProcessingTime records one sample
func (pm *PerformanceMetrics) RecordProcessingTime(duration time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pm.minProcessingTime == 0 || duration < pm.minProcessingTime {
		pm.minProcessingTime = duration
	}
	if duration > pm.maxProcessingTime {
		pm.maxProcessingTime = duration
	}

	if len(pm.processingTimes) >= 1000 {
		pm.processingTimes = pm.processingTimes[1:]
	}
	pm.processingTimes = append(pm.processingTimes, duration)
}

// GetPerformanceSnapshot computes percentiles over the retained samples
func (pm *PerformanceMetrics) GetPerformanceSnapshot() PerformanceSnapshot {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	snapshot := PerformanceSnapshot{
		MinProcessingTime: pm.minProcessingTime,
		MaxProcessingTime: pm.maxProcessingTime,
		Samples:           len(pm.processingTimes),
	}
	if len(pm.processingTimes) == 0 {
		return snapshot
	}

	times := make([]time.Duration, len(pm.processingTimes))
	copy(times, pm.processingTimes)
	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })

	p95Index := int(float64(len(times)) * 0.95)
	p99Index := int(float64(len(times)) * 0.99)
	if p95Index >= len(times) {
		p95Index = len(times) - 1
	}
	if p99Index >= len(times) {
		p99Index = len(times) - 1
	}
	snapshot.P95ProcessingTime = times[p95Index]
	snapshot.P99ProcessingTime = times[p99Index]
	return snapshot
}
