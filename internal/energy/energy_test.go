package energy

import (
	"math"
	"testing"
)

func TestEstimateWithoutDuration(t *testing.T) {
	m := DefaultModel()
	rep := m.Estimate(Input{TotalBytes: 1_000_000})
	if rep.HasDuration {
		t.Fatal("no duration given, HasDuration must be false")
	}
	want := 1_000_000 * 1.10 // 7% + 2% + 1% overhead
	if math.Abs(rep.BytesEffective-want) > 1 {
		t.Errorf("effective bytes = %f, want %f", rep.BytesEffective, want)
	}
	if rep.TotalJ != 0 {
		t.Errorf("joules computed without a duration: %f", rep.TotalJ)
	}
}

func TestNetworkInferenceThresholds(t *testing.T) {
	m := DefaultModel()
	cases := []struct {
		name  string
		bytes int64
		want  Network
	}{
		// One-second deliveries; mbps = bytes*8/1e6.
		{"160 Mbps is 5g", 20_000_000, Network5G},
		{"48 Mbps is wifi", 6_000_000, NetworkWifi},
		{"8 Mbps is lte", 1_000_000, NetworkLTE},
		{"0.8 Mbps is still lte", 100_000, NetworkLTE},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := m.Estimate(Input{TotalBytes: tc.bytes, DurationSeconds: 1, Network: NetworkAuto})
			if rep.Network != tc.want {
				t.Errorf("network = %q, want %q", rep.Network, tc.want)
			}
		})
	}
}

func TestExplicitNetworkOverridesInference(t *testing.T) {
	m := DefaultModel()
	rep := m.Estimate(Input{TotalBytes: 1_000_000, DurationSeconds: 1, Network: NetworkEthernet})
	if rep.Network != NetworkEthernet {
		t.Errorf("network = %q, want ethernet", rep.Network)
	}
}

func TestEnergyComponents(t *testing.T) {
	m := DefaultModel()
	// 2 MB in 5 s: 3.2 Mbps, lte profile.
	rep := m.Estimate(Input{TotalBytes: 2_000_000, DurationSeconds: 5, Network: NetworkAuto})
	if rep.Network != NetworkLTE {
		t.Fatalf("network = %q, want lte", rep.Network)
	}

	prof := m.Profiles[NetworkLTE]
	duty := 3.2 / prof.CapacityMbps
	wantDevice := prof.CPUW*5 + prof.RadioW*duty*5 + prof.RadioW*0.5*prof.TailS
	if math.Abs(rep.DeviceJ-wantDevice) > 1e-9 {
		t.Errorf("device = %f, want %f", rep.DeviceJ, wantDevice)
	}
	wantServer := m.ServerNetworkW * m.ServerShare * 5
	if math.Abs(rep.ServerJ-wantServer) > 1e-9 {
		t.Errorf("server = %f, want %f", rep.ServerJ, wantServer)
	}
	if math.Abs(rep.TotalJ-(wantDevice+wantServer)) > 1e-9 {
		t.Errorf("total = %f", rep.TotalJ)
	}
	if rep.JPerMB <= 0 || rep.MBPerJ <= 0 {
		t.Errorf("efficiency ratios missing: %+v", rep)
	}
}

func TestRTTAddsHandshakeEnergy(t *testing.T) {
	m := DefaultModel()
	base := m.Estimate(Input{TotalBytes: 2_000_000, DurationSeconds: 5})
	withRTT := m.Estimate(Input{TotalBytes: 2_000_000, DurationSeconds: 5, RTTMs: 100})

	prof := m.Profiles[NetworkLTE]
	wantDelta := prof.RadioW * 0.1 * 0.1 // 100 ms
	if got := withRTT.DeviceJ - base.DeviceJ; math.Abs(got-wantDelta) > 1e-9 {
		t.Errorf("handshake delta = %f, want %f", got, wantDelta)
	}
}

func TestDutyCycleIsCapped(t *testing.T) {
	m := DefaultModel()
	// 200 MB in 1 s far exceeds lte capacity.
	rep := m.Estimate(Input{TotalBytes: 200_000_000, DurationSeconds: 1, Network: NetworkLTE})
	if rep.DutyCycle != 1 {
		t.Errorf("duty = %f, want capped at 1", rep.DutyCycle)
	}
}
