package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
)

// ClientInfo is the caller description attached to auth event logs.
type ClientInfo struct {
	IP         string
	Browser    string
	OS         string
	DeviceType string
}

func ParseClientInfo(ip, userAgentString string) ClientInfo {
	info := ClientInfo{
		IP:         ip,
		Browser:    "Unknown Browser",
		OS:         "Unknown OS",
		DeviceType: "Unknown",
	}
	if userAgentString == "" {
		return info
	}

	ua := useragent.Parse(userAgentString)

	if ua.Name != "" {
		info.Browser = ua.Name
		if ua.Version != "" {
			info.Browser = ua.Name + " " + ua.Version
		}
	}

	if ua.OS != "" {
		info.OS = ua.OS
		if ua.OSVersion != "" {
			info.OS = ua.OS + " " + ua.OSVersion
		}
	}

	switch {
	case ua.Bot:
		info.DeviceType = "Bot"
	case ua.Mobile:
		info.DeviceType = "Mobile"
	case ua.Tablet:
		info.DeviceType = "Tablet"
	default:
		info.DeviceType = "Desktop"
	}

	return info
}

func (i ClientInfo) Fields() []zap.Field {
	return []zap.Field{
		zap.String("client_ip", i.IP),
		zap.String("browser", i.Browser),
		zap.String("os", i.OS),
		zap.String("device_type", i.DeviceType),
	}
}

func clientInfo(c echo.Context) ClientInfo {
	return ParseClientInfo(c.RealIP(), c.Request().UserAgent())
}
