// Package latticeprog programs a Lattice FPGA board from a Raspberry Pi:
// either the SPI NOR flash the FPGA boots from (bit-banged over GPIO lines
// shared with the FPGA's slave-SPI port), or the FPGA's volatile
// configuration memory directly (streamed over the hardware SPI peripheral).
//
// The flash path owns six GPIO lines for the duration of a session, forces
// the FPGA off the shared bus by holding it in reset, and speaks the NOR
// command set one clock edge at a time. All lines are returned to a neutral
// input state at teardown so the FPGA can boot normally afterwards.
//
// # References:
//
// FPGA
//   - [Lattice-TN1248]: iCE40 Programming and Configuration (https://www.latticesemi.com/view_document?document_id=46502)
//
// SPI Flash
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
package latticeprog
