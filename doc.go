// Package urmotion drives a Universal Robots arm through a list of
// waypoints and commands an OnRobot RG2 gripper.
//
// Motion is open loop: each move is sent to the controller's script port,
// followed by a fixed settle wait and a best-effort read-back of the TCP
// pose. The controller gives no motion-complete signal.
//
// # Installation
//
//	go install github.com/gwillem/urmotion/cmd/urmotion@latest
//
// # Usage
//
// First, run setup to enter the controller addresses and write urmotion.toml:
//
//	urmotion setup
//
// Add [[waypoint]] entries to the file, then:
//
//	urmotion run
//
// One-shot commands:
//
//	urmotion pose
//	urmotion watch
//	urmotion move --home
//	urmotion stop
//	urmotion grip --width 60 --force 20
//	urmotion width --id 1
//
// # Packages
//
//   - cmd/urmotion: CLI
//   - pkg/robot: arm session, pose read-back, dashboard client, configuration
//   - pkg/gripper: RG gripper over XML-RPC
//   - pkg/sequencer: waypoint sequencer
//   - pkg/urscript: script encoding and pose parsing
//   - pkg/transport: TCP connections with deadlines
//   - pkg/fallback: ordered fallback chains
//   - pkg/faults: error kinds
//   - pkg/logging: logger construction
package urmotion
