package config

import (
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	c := Default()
	if c.GpuTres != "gres/gpu" {
		t.Fatalf("GpuTres %s", c.GpuTres)
	}
	if len(c.PublicPartitions) != 0 {
		t.Fatalf("PublicPartitions %v", c.PublicPartitions)
	}
	if !c.PublicPartition("anything") {
		t.Fatal("With no public list, every partition is public")
	}
	if !c.DownState("down") || !c.DownState("down*") || !c.DownState("DRAINED") {
		t.Fatal("Down states")
	}
	if c.DownState("idle") || c.DownState("mixed") || c.DownState("allocated") {
		t.Fatal("Up states")
	}
}

func TestRead(t *testing.T) {
	c := Default()
	input := `[cluster]
public-partitions=universe,asteroids
down-states=down,broken
gpu-tres=gres/gpu:a100

[qos]
classes=staff,student
deadline-marker=urgent
`
	if err := c.Read(strings.NewReader(input)); err != nil {
		t.Fatal(err)
	}
	if !c.PublicPartition("universe") || !c.PublicPartition("asteroids*") {
		t.Fatal("Public partitions")
	}
	if c.PublicPartition("secret") {
		t.Fatal("Private partition reported public")
	}
	if !c.DownState("broken") || c.DownState("drained") {
		t.Fatal("Down states not replaced")
	}
	if c.GpuTres != "gres/gpu:a100" {
		t.Fatalf("GpuTres %s", c.GpuTres)
	}
	if label, rank := c.QosClass("student_urgent"); label != "student|d" || rank != 3 {
		t.Fatalf("QosClass %s %d", label, rank)
	}
}

func TestReadMalformed(t *testing.T) {
	c := Default()
	if err := c.Read(strings.NewReader("not an ini file at all [")); err == nil {
		t.Fatal("Expected a parse error")
	}
	// The defaults survive a failed read.
	if c.GpuTres != "gres/gpu" {
		t.Fatalf("GpuTres %s", c.GpuTres)
	}
}

func TestQosClass(t *testing.T) {
	c := Default()
	cases := []struct {
		qos   string
		label string
		rank  int
	}{
		{"phd_deadline", "phd|d", 1},
		{"phd_normal", "phd|n", 2},
		{"msc_deadline", "msc|d", 3},
		{"msc_normal", "msc|n", 4},
		{"interactive", "other", 5},
		{"", "other", 5},
	}
	for _, x := range cases {
		label, rank := c.QosClass(x.qos)
		if label != x.label || rank != x.rank {
			t.Fatalf("QosClass(%q) = %s, %d", x.qos, label, rank)
		}
	}
}
