// Package scenario loads reconfiguration scenarios from YAML files.
//
// A scenario describes a cluster model, the states requested for its VMs,
// the action durations and the placement constraints:
//
//	apiVersion: reconf/v1
//	kind: Scenario
//	metadata:
//	  name: drain-n1
//	spec:
//	  nodes:
//	    - {id: n1, state: online}
//	    - {id: n2, state: online}
//	  vms:
//	    - {id: vm1, state: running, host: n1}
//	  resources:
//	    - id: cpu
//	      default: 1
//	      capacity: {n1: 4, n2: 4}
//	  request:
//	    keep: true
//	  durations:
//	    migrateVM: {linear: {resource: cpu, a: 2, b: 1}}
//	  constraints:
//	    - {type: offline, nodes: [n1]}
package scenario

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/reconf/pkg/constraint"
	"github.com/cuemby/reconf/pkg/duration"
	"github.com/cuemby/reconf/pkg/planner"
	"github.com/cuemby/reconf/pkg/reconf"
	"github.com/cuemby/reconf/pkg/types"
)

const (
	APIVersion = "reconf/v1"
	Kind       = "Scenario"
)

// ErrInvalid is returned when a scenario document cannot be turned into a
// model and a request
var ErrInvalid = errors.New("invalid scenario")

// ErrMalformed marks a document that is not valid YAML. It is always
// reported together with ErrInvalid.
var ErrMalformed = errors.New("malformed scenario")

// Document is the YAML form of a scenario
type Document struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

type Metadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type Spec struct {
	Planner     yaml.Node               `yaml:"planner,omitempty"`
	Nodes       []NodeSpec              `yaml:"nodes"`
	VMs         []VMSpec                `yaml:"vms"`
	Resources   []ResourceSpec          `yaml:"resources,omitempty"`
	Request     RequestSpec             `yaml:"request"`
	Durations   map[string]DurationSpec `yaml:"durations,omitempty"`
	Constraints []ConstraintSpec        `yaml:"constraints,omitempty"`
}

type NodeSpec struct {
	ID    string `yaml:"id"`
	State string `yaml:"state"`
}

type VMSpec struct {
	ID    string `yaml:"id"`
	State string `yaml:"state"`
	Host  string `yaml:"host,omitempty"`
}

type ResourceSpec struct {
	ID          string         `yaml:"id"`
	Default     int            `yaml:"default"`
	Capacity    map[string]int `yaml:"capacity,omitempty"`
	Consumption map[string]int `yaml:"consumption,omitempty"`
}

// RequestSpec lists the requested VM states. With Keep, the VMs listed
// nowhere stay in their current state.
type RequestSpec struct {
	Run     []string `yaml:"run,omitempty"`
	Wait    []string `yaml:"wait,omitempty"`
	Sleep   []string `yaml:"sleep,omitempty"`
	Destroy []string `yaml:"destroy,omitempty"`
	Keep    bool     `yaml:"keep,omitempty"`
}

// DurationSpec sets exactly one of Constant and Linear
type DurationSpec struct {
	Constant *int        `yaml:"constant,omitempty"`
	Linear   *LinearSpec `yaml:"linear,omitempty"`
}

type LinearSpec struct {
	Resource string `yaml:"resource"`
	A        int    `yaml:"a"`
	B        int    `yaml:"b"`
}

type ConstraintSpec struct {
	Type     string   `yaml:"type"`
	VMs      []string `yaml:"vms,omitempty"`
	Nodes    []string `yaml:"nodes,omitempty"`
	Resource string   `yaml:"resource,omitempty"`
	Amount   int      `yaml:"amount,omitempty"`
}

// Scenario is a decoded scenario, ready to be planned
type Scenario struct {
	Name        string
	Model       *types.Model
	Request     reconf.Request
	Durations   *duration.Evaluators
	Constraints []reconf.Constraint
	Planner     planner.Config
}

// Load reads and decodes a scenario file
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return Parse(data)
}

// Parse decodes a scenario document
func Parse(data []byte) (*Scenario, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrInvalid, ErrMalformed, err)
	}
	return doc.Decode()
}

// Decode validates the document and builds the scenario
func (d *Document) Decode() (*Scenario, error) {
	if d.APIVersion != APIVersion {
		return nil, invalid("unsupported apiVersion %q", d.APIVersion)
	}
	if d.Kind != Kind {
		return nil, invalid("unsupported kind %q", d.Kind)
	}

	mo, err := d.Spec.model()
	if err != nil {
		return nil, err
	}
	sc := &Scenario{
		Name:    d.Metadata.Name,
		Model:   mo,
		Request: d.Spec.Request.request(mo),
		Planner: planner.DefaultConfig(),
	}
	// Settings missing from the document keep their default
	if d.Spec.Planner.Kind != 0 {
		if err := d.Spec.Planner.Decode(&sc.Planner); err != nil {
			return nil, fmt.Errorf("%w: planner: %w", ErrInvalid, err)
		}
	}
	if sc.Durations, err = d.Spec.durations(mo); err != nil {
		return nil, err
	}
	for i, c := range d.Spec.Constraints {
		rc, err := c.constraint()
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		sc.Constraints = append(sc.Constraints, rc)
	}
	return sc, nil
}

func (s *Spec) model() (*types.Model, error) {
	mo := types.NewModel()
	for _, n := range s.Nodes {
		id := types.NodeID(n.ID)
		if n.ID == "" {
			return nil, invalid("node without id")
		}
		if mo.Mapping.HasNode(id) {
			return nil, invalid("duplicate node %s", n.ID)
		}
		switch types.NodeState(n.State) {
		case types.NodeStateOnline, "":
			mo.Mapping.AddOnlineNode(id)
		case types.NodeStateOffline:
			if err := mo.Mapping.AddOfflineNode(id); err != nil {
				return nil, err
			}
		default:
			return nil, invalid("node %s: unknown state %q", n.ID, n.State)
		}
	}

	for _, vm := range s.VMs {
		id := types.VMID(vm.ID)
		if vm.ID == "" {
			return nil, invalid("vm without id")
		}
		if mo.Mapping.HasVM(id) {
			return nil, invalid("duplicate vm %s", vm.ID)
		}
		var err error
		switch types.VMState(vm.State) {
		case types.VMStateReady:
			if vm.Host != "" {
				return nil, invalid("vm %s: a ready vm has no host", vm.ID)
			}
			mo.Mapping.AddReadyVM(id)
		case types.VMStateRunning:
			err = mo.Mapping.AddRunningVM(id, types.NodeID(vm.Host))
		case types.VMStateSleeping:
			err = mo.Mapping.AddSleepingVM(id, types.NodeID(vm.Host))
		default:
			return nil, invalid("vm %s: unknown state %q", vm.ID, vm.State)
		}
		if err != nil {
			return nil, fmt.Errorf("vm %s: %w: %w", vm.ID, ErrInvalid, err)
		}
	}

	for _, r := range s.Resources {
		if r.ID == "" {
			return nil, invalid("resource without id")
		}
		if _, ok := mo.View(r.ID); ok {
			return nil, invalid("duplicate resource %s", r.ID)
		}
		rc := types.NewShareableResource(r.ID, r.Default)
		for n, v := range r.Capacity {
			rc.SetCapacity(types.NodeID(n), v)
		}
		for vm, v := range r.Consumption {
			rc.SetConsumption(types.VMID(vm), v)
		}
		mo.Attach(rc)
	}
	return mo, nil
}

func (r *RequestSpec) request(mo *types.Model) reconf.Request {
	req := reconf.Request{
		ToRun:     vmIDs(r.Run),
		ToWait:    vmIDs(r.Wait),
		ToSleep:   vmIDs(r.Sleep),
		ToDestroy: vmIDs(r.Destroy),
	}
	if !r.Keep {
		return req
	}
	listed := make(map[types.VMID]struct{})
	for _, set := range [][]types.VMID{req.ToRun, req.ToWait, req.ToSleep, req.ToDestroy} {
		for _, vm := range set {
			listed[vm] = struct{}{}
		}
	}
	for _, vm := range mo.Mapping.AllVMs() {
		if _, ok := listed[vm]; ok {
			continue
		}
		switch mo.Mapping.VMState(vm) {
		case types.VMStateReady:
			req.ToWait = append(req.ToWait, vm)
		case types.VMStateRunning:
			req.ToRun = append(req.ToRun, vm)
		case types.VMStateSleeping:
			req.ToSleep = append(req.ToSleep, vm)
		}
	}
	return req
}

func (s *Spec) durations(mo *types.Model) (*duration.Evaluators, error) {
	evs := duration.Defaults()
	known := make(map[string]struct{}, len(duration.Kinds))
	for _, k := range duration.Kinds {
		known[string(k)] = struct{}{}
	}

	kinds := make([]string, 0, len(s.Durations))
	for k := range s.Durations {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	for _, k := range kinds {
		if _, ok := known[k]; !ok {
			return nil, invalid("unknown action kind %q", k)
		}
		d := s.Durations[k]
		switch {
		case d.Constant != nil && d.Linear != nil:
			return nil, invalid("%s: constant and linear are exclusive", k)
		case d.Constant != nil:
			evs.Register(duration.Kind(k), duration.Constant(*d.Constant))
		case d.Linear != nil:
			rc, ok := mo.View(d.Linear.Resource)
			if !ok {
				return nil, invalid("%s: unknown resource %q", k, d.Linear.Resource)
			}
			evs.Register(duration.Kind(k), duration.Linear{View: rc, A: d.Linear.A, B: d.Linear.B})
		default:
			return nil, invalid("%s: no duration", k)
		}
	}
	return evs, nil
}

func (c *ConstraintSpec) constraint() (reconf.Constraint, error) {
	vms, nodes := vmIDs(c.VMs), nodeIDs(c.Nodes)
	switch c.Type {
	case "online":
		return &constraint.Online{Nodes: nodes}, c.require(nodes != nil, "nodes")
	case "offline":
		return &constraint.Offline{Nodes: nodes}, c.require(nodes != nil, "nodes")
	case "fence":
		return &constraint.Fence{VMs: vms, Nodes: nodes}, c.require(vms != nil && nodes != nil, "vms and nodes")
	case "ban":
		return &constraint.Ban{VMs: vms, Nodes: nodes}, c.require(vms != nil && nodes != nil, "vms and nodes")
	case "root":
		return &constraint.Root{VMs: vms}, c.require(vms != nil, "vms")
	case "preserve":
		return &constraint.Preserve{VMs: vms, Resource: c.Resource, Amount: c.Amount},
			c.require(vms != nil && c.Resource != "", "vms and resource")
	}
	return nil, invalid("unknown constraint type %q", c.Type)
}

func (c *ConstraintSpec) require(ok bool, fields string) error {
	if !ok {
		return invalid("%s requires %s", c.Type, fields)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func vmIDs(ids []string) []types.VMID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]types.VMID, len(ids))
	for i, id := range ids {
		out[i] = types.VMID(id)
	}
	return out
}

func nodeIDs(ids []string) []types.NodeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]types.NodeID, len(ids))
	for i, id := range ids {
		out[i] = types.NodeID(id)
	}
	return out
}
