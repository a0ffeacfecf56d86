package urls

// LANProtocol is the LIFX LAN protocol reference, covering the frame
// header, message types and discovery.
const LANProtocol = "https://lan.developer.lifx.com/docs"
