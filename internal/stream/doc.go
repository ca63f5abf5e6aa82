// Package stream controls the go2rtc video relay. The relay only runs
// while the intercom's video presence line is active, so viewers get a
// live stream during a call and the SoC idles the rest of the time.
package stream
