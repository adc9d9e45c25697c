package models

// DevicePortInfo describes the serial port the controller is attached to.
type DevicePortInfo struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudRate"`
	IsOpen   bool   `json:"isOpen"`
}

// DeviceStatus is the controller connection state as reported by the backend.
type DeviceStatus struct {
	IsConnected bool            `json:"isConnected"`
	PortInfo    *DevicePortInfo `json:"portInfo,omitempty"`
}

// DevicePort is one serial port the backend discovered during a scan.
type DevicePort struct {
	Path         string `json:"path"`
	Manufacturer string `json:"manufacturer,omitempty"`
}

// DevicePanel is the locally remembered control-panel state: the last
// light mode and fan setting the operator applied. It is persisted across
// runs while live device status is always re-fetched.
type DevicePanel struct {
	Mode LightMode `json:"mode"`
	Fan  bool      `json:"fan"`
}
