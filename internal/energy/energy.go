// Package energy estimates how much energy a delivery cost, from its byte
// count, measured duration and (optionally) RTT. The numbers feed the user
// receipt only; they never influence routing.
package energy

type Network string

const (
	NetworkWifi     Network = "wifi"
	NetworkLTE      Network = "lte"
	Network5G       Network = "5g"
	NetworkEthernet Network = "ethernet"
	// NetworkAuto infers the class from measured throughput.
	NetworkAuto Network = "auto"
)

// Profile models one network class's power draw.
type Profile struct {
	RadioW       float64
	CPUW         float64
	TailS        float64
	CapacityMbps float64
}

// Model holds the tunables. Use DefaultModel and override as needed.
type Model struct {
	// Fractional payload inflation for protocol, encryption and retries.
	Overhead           float64
	EncryptionOverhead float64
	RetryRate          float64

	ServerNetworkW float64
	ServerShare    float64

	Profiles map[Network]Profile
}

func DefaultModel() Model {
	return Model{
		Overhead:           0.07,
		EncryptionOverhead: 0.02,
		RetryRate:          0.01,
		ServerNetworkW:     6.0,
		ServerShare:        0.25,
		Profiles: map[Network]Profile{
			NetworkWifi:     {RadioW: 1.6, CPUW: 0.7, TailS: 0.8, CapacityMbps: 120},
			NetworkLTE:      {RadioW: 3.2, CPUW: 0.9, TailS: 2.0, CapacityMbps: 25},
			Network5G:       {RadioW: 4.6, CPUW: 1.2, TailS: 3.0, CapacityMbps: 220},
			NetworkEthernet: {RadioW: 0.8, CPUW: 0.6, TailS: 0.3, CapacityMbps: 1000},
		},
	}
}

type Input struct {
	TotalBytes      int64
	DurationSeconds float64 // <= 0 means unknown
	RTTMs           float64 // <= 0 means unknown
	Network         Network // empty means auto
}

// Report is the estimate. When HasDuration is false only BytesEffective is
// meaningful.
type Report struct {
	HasDuration    bool
	Network        Network
	ThroughputMbps float64
	BytesEffective float64
	DeviceJ        float64
	ServerJ        float64
	TotalJ         float64
	BytesPerJ      float64
	MBPerJ         float64
	JPerMB         float64
	DutyCycle      float64
}

// guessNetwork is a coarse throughput heuristic.
func guessNetwork(throughputMbps float64) Network {
	switch {
	case throughputMbps >= 150:
		return Network5G
	case throughputMbps >= 40:
		return NetworkWifi
	case throughputMbps >= 3:
		return NetworkLTE
	default:
		return NetworkLTE
	}
}

// Estimate computes the energy report for one delivery.
func (m Model) Estimate(in Input) Report {
	payload := in.TotalBytes
	if payload < 0 {
		payload = 0
	}
	effective := float64(payload) * (1 + m.Overhead + m.EncryptionOverhead + m.RetryRate)

	if in.DurationSeconds <= 0 {
		return Report{HasDuration: false, BytesEffective: effective}
	}

	mbps := (float64(payload) * 8 / in.DurationSeconds) / 1e6
	net := in.Network
	if net == "" || net == NetworkAuto {
		net = guessNetwork(mbps)
	}
	prof, ok := m.Profiles[net]
	if !ok {
		prof = m.Profiles[NetworkLTE]
	}

	// duty cycle: how loaded the radio is relative to the channel capacity.
	duty := 1.0
	if prof.CapacityMbps > 0 {
		duty = mbps / prof.CapacityMbps
		if duty > 1 {
			duty = 1
		}
	}

	cpuJ := prof.CPUW * in.DurationSeconds
	radioJ := prof.RadioW * duty * in.DurationSeconds
	tailJ := prof.RadioW * 0.5 * prof.TailS // half power on the radio tail
	handshakeJ := 0.0
	if in.RTTMs > 0 {
		handshakeJ = prof.RadioW * 0.1 * (in.RTTMs / 1000)
	}
	deviceJ := cpuJ + radioJ + tailJ + handshakeJ
	serverJ := m.ServerNetworkW * m.ServerShare * in.DurationSeconds
	totalJ := deviceJ + serverJ

	mb := effective / (1024 * 1024)
	rep := Report{
		HasDuration:    true,
		Network:        net,
		ThroughputMbps: mbps,
		BytesEffective: effective,
		DeviceJ:        deviceJ,
		ServerJ:        serverJ,
		TotalJ:         totalJ,
		DutyCycle:      duty,
	}
	if totalJ > 0 {
		rep.BytesPerJ = effective / totalJ
		rep.MBPerJ = mb / totalJ
	}
	if mb > 0 {
		rep.JPerMB = totalJ / mb
	}
	return rep
}
