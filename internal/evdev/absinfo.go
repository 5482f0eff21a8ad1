package evdev

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

var axisNames = map[int]string{
	AbsX:        "ABS_X",
	AbsY:        "ABS_Y",
	AbsPressure: "ABS_PRESSURE",
	AbsDistance: "ABS_DISTANCE",
	AbsTiltX:    "ABS_TILT_X",
	AbsTiltY:    "ABS_TILT_Y",
}
