package blob

// Coordinates address one record inside one container.
type Coordinates struct {
	containerID string
	offset      int64
	length      int64
}

func NewCoordinates(containerID string, offset, length int64) Coordinates {
	return Coordinates{
		containerID: containerID,
		offset:      offset,
		length:      length,
	}
}

func (c *Coordinates) ContainerID() string {
	return c.containerID
}

func (c *Coordinates) Offset() int64 {
	return c.offset
}

func (c *Coordinates) Length() int64 {
	return c.length
}
