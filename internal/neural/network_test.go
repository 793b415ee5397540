package neural

import (
	"testing"

	"github.com/nvandessel/neurogrow/internal/models"
)

func newTestNetwork(t *testing.T, opts ...Option) *Network {
	t.Helper()
	specs := make([]LayerSpec, 3)
	for i := range specs {
		specs[i] = smallSpec()
		specs[i].Index = i
		specs[i].Role = Role(i)
	}
	net, err := NewNetwork(specs, opts...)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	return net
}

func TestNewNetwork_Errors(t *testing.T) {
	if _, err := NewNetwork(nil); err == nil {
		t.Error("expected error for no layers")
	}
	if _, err := NewNetwork([]LayerSpec{smallSpec(), smallSpec()}); err == nil {
		t.Error("expected error for duplicate index")
	}
	bad := smallSpec()
	bad.GrowthFactors = nil
	if _, err := NewNetwork([]LayerSpec{bad}); err == nil {
		t.Error("expected error for an invalid layer")
	}
}

func TestNetwork_LayersOrdered(t *testing.T) {
	specs := []LayerSpec{DefaultLayerSpec(2), DefaultLayerSpec(0), DefaultLayerSpec(1)}
	net, err := NewNetwork(specs)
	if err != nil {
		t.Fatalf("NewNetwork: %v", err)
	}
	for i, l := range net.Layers() {
		if l.Index() != i {
			t.Errorf("layer %d has index %d", i, l.Index())
		}
	}
	if _, ok := net.Layer(7); ok {
		t.Error("Layer(7) should not exist")
	}
}

func TestNetwork_RoutesByDepth(t *testing.T) {
	net := newTestNetwork(t)
	src := net.Seed(models.Pos(0, 0, 0))
	if src == nil {
		t.Fatal("Seed returned nil")
	}

	deep := net.ConnectNeuronTo(src, models.Pos(1, 1, 2))
	if deep == nil {
		t.Fatal("cross-layer connect failed")
	}
	l2, _ := net.Layer(2)
	if l2.NeuronAt(models.Pos(1, 1, 2)) != deep {
		t.Error("neuron not stored in layer 2")
	}
	if net.NeuronAt(models.Pos(1, 1, 2)) != deep {
		t.Error("NeuronAt did not route to layer 2")
	}
	if net.ConnectNeuronTo(src, models.Pos(0, 0, 9)) != nil {
		t.Error("connect to unknown layer should return nil")
	}
	if net.Seed(models.Pos(0, 0, -1)) != nil {
		t.Error("seed in unknown layer should return nil")
	}
}

func TestNetwork_CrossLayerFiring(t *testing.T) {
	d := &recordingDispatcher{}
	net := newTestNetwork(t, WithDispatcher(d))
	src := net.Seed(models.Pos(0, 0, 0))
	deep := net.ConnectNeuronTo(src, models.Pos(0, 0, 1))

	if !net.Stimulate(models.Pos(0, 0, 0), models.NewSignal(1, 0)) {
		t.Fatal("Stimulate rejected")
	}
	if !src.ProcessReceivedSignals(0) {
		t.Fatal("expected source to fire")
	}
	events := d.Events()
	if len(events) != 1 || events[0].Target != deep {
		t.Fatalf("expected one event to the layer 1 neuron, got %+v", events)
	}
}

func TestNetwork_StimulateEmpty(t *testing.T) {
	net := newTestNetwork(t)
	if net.Stimulate(models.Pos(0, 0, 0), models.NewSignal(1, 0)) {
		t.Error("stimulating an empty position should fail")
	}
	if net.Stimulate(models.Pos(0, 0, 5), models.NewSignal(1, 0)) {
		t.Error("stimulating an unknown layer should fail")
	}
}

func TestNetwork_AdvanceAndStats(t *testing.T) {
	net := newTestNetwork(t)
	net.Seed(models.Pos(0, 0, 0))
	net.Seed(models.Pos(1, 0, 1))
	net.Advance()
	net.Advance()

	stats := net.Stats()
	if len(stats) != 3 {
		t.Fatalf("stats = %d layers, want 3", len(stats))
	}
	for _, st := range stats {
		if st.Tick != 2 {
			t.Errorf("layer %d tick = %d, want 2", st.Index, st.Tick)
		}
	}
	if stats[0].Neurons != 1 || stats[1].Neurons != 1 || stats[2].Neurons != 0 {
		t.Errorf("unexpected neuron counts: %+v", stats)
	}
	if len(net.Neurons()) != 2 {
		t.Errorf("Neurons() = %d, want 2", len(net.Neurons()))
	}
}
