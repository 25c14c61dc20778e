package connection

// Quality is a five-level discrete assessment of connection health, ordered
// from worst to best.
type Quality int

const (
	QualityDisconnected Quality = iota
	QualityPoor
	QualityFair
	QualityGood
	QualityExcellent
)

func (q Quality) String() string {
	switch q {
	case QualityDisconnected:
		return "disconnected"
	case QualityPoor:
		return "poor"
	case QualityFair:
		return "fair"
	case QualityGood:
		return "good"
	case QualityExcellent:
		return "excellent"
	}
	return "unknown"
}

// InterfaceKind is the transport the network path currently runs over.
type InterfaceKind string

const (
	InterfaceUnknown  InterfaceKind = "unknown"
	InterfaceWiFi     InterfaceKind = "wifi"
	InterfaceWired    InterfaceKind = "wired"
	InterfaceCellular InterfaceKind = "cellular"
)

// All threshold comparisons use inclusive lower bounds.
func latencyTier(averageLatencyMs float64) Quality {
	switch {
	case averageLatencyMs <= 100:
		return QualityExcellent
	case averageLatencyMs <= 250:
		return QualityGood
	case averageLatencyMs <= 500:
		return QualityFair
	case averageLatencyMs <= 1000:
		return QualityPoor
	}
	return QualityDisconnected
}

func errorRateTier(errorRate float64) Quality {
	switch {
	case errorRate <= 0.01:
		return QualityExcellent
	case errorRate <= 0.05:
		return QualityGood
	case errorRate <= 0.10:
		return QualityFair
	case errorRate <= 0.25:
		return QualityPoor
	}
	return QualityDisconnected
}
