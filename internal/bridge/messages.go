package bridge

import "time"

// Vector3 mirrors geometry_msgs/Vector3.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// TwistMessage mirrors geometry_msgs/Twist as received from the command
// source. Components are taken as published: the drive uses linear.z and
// angular.y.
type TwistMessage struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// Transform is one parent to child transform in the robotics frame
// (Z up, right-handed). Rotation is (x, y, z, w).
type Transform struct {
	Parent      string     `json:"frame_id"`
	Child       string     `json:"child_frame_id"`
	Translation [3]float64 `json:"translation"`
	Rotation    [4]float64 `json:"rotation"`
}

// TransformSet is one broadcast of every published transform.
type TransformSet struct {
	Stamp      time.Time   `json:"stamp"`
	Transforms []Transform `json:"transforms"`
}
