// Package mqtt wraps the paho client for the device health service.
//
// Device agents can publish health reports to the broker instead of calling
// the REST API. The service subscribes to those reports and publishes alert
// events and retained per-device state back to the bus:
//
//	agent  -> {prefix}/devices/{id}/report
//	service -> {prefix}/devices/{id}/state  (retained)
//	service -> {prefix}/alerts/{id}
//	service -> {prefix}/system/status       (retained presence, LWT)
//
// The client reconnects on its own and restores every route registered
// with Subscribe. Enable broker TLS (mqtt.broker.tls) outside development.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllDeviceReports(), client.QoS(), handle)
//	err = client.PublishJSON(client.Topics().DeviceState("sensor-001"), rec, true)
package mqtt
