package session

import "fmt"

// RegionFactory builds regions from properties. Implementations return an
// error wrapping ErrConstruction for properties they reject.
type RegionFactory interface {
	Create(props RegionProps) (*Region, error)
}

// RegionFactoryFunc adapts a function to RegionFactory
type RegionFactoryFunc func(props RegionProps) (*Region, error)

func (f RegionFactoryFunc) Create(props RegionProps) (*Region, error) { return f(props) }

// DefaultRegionFactory validates the properties and builds the region
type DefaultRegionFactory struct{}

func (DefaultRegionFactory) Create(props RegionProps) (*Region, error) {
	if len(props.Sources) == 0 {
		return nil, fmt.Errorf("region %q has no sources: %w", props.Name, ErrConstruction)
	}
	if props.Length.Val <= 0 {
		return nil, fmt.Errorf("region %q has length %s: %w", props.Name, props.Length, ErrConstruction)
	}
	if props.Start.Val < 0 {
		return nil, fmt.Errorf("region %q starts before its source (%s): %w", props.Name, props.Start, ErrConstruction)
	}
	if props.Position.Domain != props.Length.Domain {
		return nil, fmt.Errorf("region %q mixes %s position with %s length: %w",
			props.Name, props.Position.Domain, props.Length.Domain, ErrConstruction)
	}

	return &Region{
		Name:      props.Name,
		DataType:  props.DataType,
		Sources:   append([]ID(nil), props.Sources...),
		Position:  props.Position,
		Start:     props.Start,
		Length:    props.Length,
		Opaque:    props.Opaque,
		Automatic: props.Automatic,
		WholeFile: props.WholeFile,
		Hidden:    props.Hidden,
		Group:     props.Group,
		Parent:    props.Parent,
	}, nil
}
