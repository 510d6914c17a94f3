// Package mipot provides a driver for the Mipot 32001353 LoRaWAN
// module, as mounted on the MikroE LoRa 4 Click board.
//
// Command reference:
// https://mipot.com/en/products/mip-series/dual-core/32001353/
//
// The module talks a checksummed command/reply protocol over an
// asynchronous serial link at 115200 8N1 and is woken through the
// NWAKE control line before every exchange. Besides direct command
// replies it emits unsolicited indications (join result, transmit
// confirmation, received downlinks) which may arrive at any time,
// including while a command reply is pending; the driver buffers
// those and hands them out through GetIndication.
//
// A Device is synchronous and single-owner: no operation may be
// invoked concurrently on the same instance.
package mipot
