package beacon

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMQTT_Disabled(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	client, err := InitMQTT(DefaultConfig(), nil)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestEnvOr(t *testing.T) {
	t.Setenv("BEACONMESH_TEST_VAR", "")
	assert.Equal(t, "cfg", envOr("BEACONMESH_TEST_VAR", "", "cfg", "default"))
	assert.Equal(t, "default", envOr("BEACONMESH_TEST_VAR", "", "default"))
	assert.Equal(t, "", envOr("BEACONMESH_TEST_VAR"))

	t.Setenv("BEACONMESH_TEST_VAR", "env")
	assert.Equal(t, "env", envOr("BEACONMESH_TEST_VAR", "cfg"))
}

func TestMQTTClient_ReportDelivery(t *testing.T) {
	mock := newMockClient()
	mock.setConnected(true)

	type delivery struct {
		topic    string
		scanners []Scanner
		err      error
	}
	var got []delivery
	handler := func(topic string, scanners []Scanner, err error) {
		got = append(got, delivery{topic, scanners, err})
	}

	cfg := DefaultConfig()
	c := newMQTTClientWithMock(mock, cfg, handler)
	c.onConnect(mock)
	assert.True(t, c.IsConnected())

	require.True(t, mock.simulate(cfg.MQTT.ReportTopic, []byte(smallReport)))
	require.True(t, mock.simulate(cfg.MQTT.ReportTopic, []byte("--- scanner 0 ---\n1,2\n")))

	require.Len(t, got, 2)
	assert.Equal(t, "beaconmesh/report", got[0].topic)
	assert.NoError(t, got[0].err)
	assert.Len(t, got[0].scanners, 2)

	var parseErr *ParseError
	assert.True(t, errors.As(got[1].err, &parseErr))
	assert.Nil(t, got[1].scanners)
}

func TestMQTTClient_ClientOptions(t *testing.T) {
	t.Setenv("MQTT_CLIENT_ID", "")
	t.Setenv("MQTT_USERNAME", "")

	cfg := DefaultConfig()
	c := newMQTTClientWithMock(newMockClient(), cfg, nil)
	opts := c.clientOptions("tcp://broker:1883")

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.Equal(t, "beaconmesh", opts.ClientID)
	assert.False(t, opts.Order, "report handlers block on solves and must not hold up the router")
	assert.True(t, opts.AutoReconnect)
	assert.Empty(t, opts.Username)
}

func TestMQTTClient_OversizedReport(t *testing.T) {
	mock := newMockClient()
	mock.setConnected(true)

	var gotErr error
	var gotScanners []Scanner
	handler := func(_ string, scanners []Scanner, err error) {
		gotScanners, gotErr = scanners, err
	}

	cfg := DefaultConfig()
	cfg.Source.MaxBytes = int64(len(smallReport) - 1)
	c := newMQTTClientWithMock(mock, cfg, handler)
	c.onConnect(mock)

	require.True(t, mock.simulate(cfg.MQTT.ReportTopic, []byte(smallReport)))
	assert.ErrorIs(t, gotErr, ErrReportTooLarge)
	assert.Nil(t, gotScanners)
}

func TestMQTTClient_NoReportTopic(t *testing.T) {
	mock := newMockClient()
	mock.setConnected(true)

	cfg := DefaultConfig()
	cfg.MQTT.ReportTopic = ""
	c := newMQTTClientWithMock(mock, cfg, nil)
	c.onConnect(mock)

	assert.False(t, mock.simulate("beaconmesh/report", []byte(smallReport)))
}

func TestMQTTClient_SubscribeError(t *testing.T) {
	mock := newMockClient()
	mock.setConnected(true)
	mock.subscribeErr = errors.New("not authorized")

	cfg := DefaultConfig()
	c := newMQTTClientWithMock(mock, cfg, nil)
	c.onConnect(mock)

	assert.False(t, mock.simulate(cfg.MQTT.ReportTopic, []byte(smallReport)))
}

func TestMQTTClient_ConnectionLifecycle(t *testing.T) {
	mock := newMockClient()
	c := newMQTTClientWithMock(mock, DefaultConfig(), nil)

	c.connectWithRetry()
	assert.True(t, c.IsConnected())
	assert.True(t, mock.IsConnected())

	c.onConnectionLost(mock, errors.New("EOF"))
	assert.False(t, c.IsConnected())

	c.setConnected(true)
	c.Disconnect()
	assert.False(t, c.IsConnected())
	assert.False(t, mock.IsConnected())
	assert.Same(t, mock, c.GetClient())
}
