package monitoring

// GetSnapshot returns a copy of the current metric values for the JSON API
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// AvgWait returns the mean acquire wait in seconds, zero when nothing has
// been admitted yet
func (s MetricsSnapshot) AvgWait() float64 {
	if s.AdmissionCount == 0 {
		return 0
	}
	return s.TotalWait / float64(s.AdmissionCount)
}
