package main

import (
	"github.com/hendranatadiria/tfg-backend/internal/livecache"
	"github.com/hendranatadiria/tfg-backend/internal/telemetry"
)

// DeviceDTO je zařízení pro seznam na dashboardu, obohacené o live stav.
type DeviceDTO struct {
	telemetry.Device

	// Live je poslední stav z Valkey. nil, když cache chybí nebo je prázdná;
	// 0 by na dashboardu vypadala jako prázdná nádrž.
	Live *livecache.Snapshot `json:"live"`
}

// errorResponse je tělo chybové odpovědi.
type errorResponse struct {
	Error string `json:"error"`
}
