package taskid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"lingotask/internal/catalog"
	"lingotask/internal/env"
	"lingotask/internal/task"
)

var ErrUnknownID = errors.New("unknown environment id")

var idPattern = regexp.MustCompile(`^([A-Z][a-z0-9]*)NL(Reach|Push|Grasp|Lift)(\d+)((?:Color|Shape|Size|Weight)*)(PixelEgo|Pixel)?(HI)?-v(\d+)$`)

// ID is the decoded form of a registry id such as
// PandaNLLift3ColorShapePixelEgoHI-v0.
type ID struct {
	Robot     string
	Kind      task.Kind
	NumObj    int
	Mode      string
	ObsType   env.ObsType
	Hindsight bool
	Version   int
}

// Parse decodes a registry id.
func Parse(raw string) (ID, error) {
	m := idPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ID{}, fmt.Errorf("%w: %q", ErrUnknownID, raw)
	}
	numObj, err := strconv.Atoi(m[3])
	if err != nil || numObj < 1 {
		return ID{}, fmt.Errorf("%w: bad object count in %q", ErrUnknownID, raw)
	}
	version, err := strconv.Atoi(m[7])
	if err != nil {
		return ID{}, fmt.Errorf("%w: bad version in %q", ErrUnknownID, raw)
	}
	kind, err := task.ParseKind(NormalizeKind(m[2]))
	if err != nil {
		return ID{}, err
	}

	mode := catalog.ParseMode(m[4]).Mode()
	obs := env.ObsState
	if m[5] != "" {
		obs = env.ObsPixel
	}
	return ID{
		Robot:     strings.ToLower(m[1]),
		Kind:      kind,
		NumObj:    numObj,
		Mode:      mode,
		ObsType:   obs,
		Hindsight: m[6] != "",
		Version:   version,
	}, nil
}

// String renders the id back into registry form.
func (id ID) String() string {
	var b strings.Builder
	robot := id.Robot
	if robot == "" {
		robot = "panda"
	}
	b.WriteString(strings.ToUpper(robot[:1]) + robot[1:])
	b.WriteString("NL")
	b.WriteString(strings.ToUpper(string(id.Kind[:1])) + string(id.Kind[1:]))
	b.WriteString(strconv.Itoa(id.NumObj))

	opts := catalog.ParseMode(id.Mode)
	for _, part := range []struct {
		on   bool
		name string
	}{
		{opts.ColorMode, "Color"},
		{opts.ShapeMode, "Shape"},
		{opts.SizeMode, "Size"},
		{opts.WeightMode, "Weight"},
	} {
		if part.on {
			b.WriteString(part.name)
		}
	}
	if id.ObsType == env.ObsPixel {
		b.WriteString("PixelEgo")
	}
	if id.Hindsight {
		b.WriteString("HI")
	}
	b.WriteString("-v")
	b.WriteString(strconv.Itoa(id.Version))
	return b.String()
}

// Config builds the environment configuration the id names. Fields the id
// does not encode keep the task defaults.
func (id ID) Config() env.Config {
	cfg := env.DefaultConfig(id.Kind)
	id.Apply(&cfg)
	return cfg
}

// Apply overrides the fields the id encodes, leaving the rest of cfg alone.
func (id ID) Apply(cfg *env.Config) {
	layout := cfg.Task.Catalog.Layout
	cfg.Task.Kind = id.Kind
	cfg.Task.NumObj = id.NumObj
	cfg.Task.Catalog = catalog.ParseMode(id.Mode)
	cfg.Task.Catalog.Layout = layout
	cfg.Task.UseHindsight = id.Hindsight
	cfg.ObsType = id.ObsType
	if id.Kind == task.KindGrasp && cfg.Task.MaxGoalHeight > task.GraspMaxGoalHeight {
		cfg.Task.MaxGoalHeight = task.GraspMaxGoalHeight
	}
}
